package sparse_test

import (
	"bytes"
	"io"
	"strconv"
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/Velocidex/go-splitarchive/internal/tartest"
	"github.com/Velocidex/go-splitarchive/sparse"
)

func sparseFileRecords(version string) sparse.Records {
	size := strconv.FormatInt(tartest.SparseFileSize, 10)

	switch version {
	case "0.0":
		records := sparse.Records{
			{Key: sparse.PAXGNUSparseSize, Value: size},
			{Key: sparse.PAXGNUSparseNumBlocks, Value: "3"},
		}
		for _, e := range tartest.SparseFileExtents {
			records = append(records,
				sparse.Record{Key: sparse.PAXGNUSparseOffset, Value: strconv.FormatInt(e.Offset, 10)},
				sparse.Record{Key: sparse.PAXGNUSparseNumBytes, Value: strconv.FormatInt(e.NumBytes, 10)})
		}
		return records

	case "0.1":
		return sparse.Records{
			{Key: sparse.PAXGNUSparseSize, Value: size},
			{Key: sparse.PAXGNUSparseNumBlocks, Value: "3"},
			{Key: sparse.PAXGNUSparseName, Value: "sparsefile-0.1"},
			{Key: sparse.PAXGNUSparseMap, Value: "0,2048,1050624,2560,3101184,0"},
		}
	}

	return sparse.Records{
		{Key: sparse.PAXGNUSparseMajor, Value: "1"},
		{Key: sparse.PAXGNUSparseMinor, Value: "0"},
		{Key: sparse.PAXGNUSparseName, Value: "sparsefile-1.0"},
		{Key: sparse.PAXGNUSparseRealSize, Value: size},
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	Convey("Classify", t, func() {
		for version, expected := range map[string]sparse.Format{
			"0.0": sparse.FormatPAX00,
			"0.1": sparse.FormatPAX01,
			"1.0": sparse.FormatPAX10,
		} {
			format, err := sparse.Classify(sparseFileRecords(version))
			So(err, ShouldBeNil)
			So(format, ShouldEqual, expected)
		}

		Convey("explicit versions win", func() {
			format, err := sparse.Classify(sparse.Records{
				{Key: sparse.PAXGNUSparseMajor, Value: "0"},
				{Key: sparse.PAXGNUSparseMinor, Value: "0"},
				{Key: sparse.PAXGNUSparseMap, Value: "0,1"},
			})
			So(err, ShouldBeNil)
			So(format, ShouldEqual, sparse.FormatPAX00)
		})

		Convey("unsupported version", func() {
			_, err := sparse.Classify(sparse.Records{
				{Key: sparse.PAXGNUSparseMajor, Value: "2"},
				{Key: sparse.PAXGNUSparseMinor, Value: "0"},
			})
			So(errors.Is(err, sparse.ErrUnsupportedVersion), ShouldBeTrue)
			So(errors.Is(err, sparse.ErrFormat), ShouldBeTrue)
		})

		Convey("not sparse", func() {
			format, err := sparse.Classify(sparse.Records{
				{Key: "path", Value: "some/file"},
			})
			So(err, ShouldBeNil)
			So(format, ShouldEqual, sparse.FormatNone)

			m, err := sparse.DecodePAX(sparse.Records{}, nil)
			So(err, ShouldBeNil)
			So(m, ShouldBeNil)
		})
	})
}

func TestDecodePAX(t *testing.T) {
	t.Parallel()

	Convey("PAX sparse maps", t, func() {
		Convey("all versions decode to the same map", func() {
			for _, version := range []string{"0.0", "0.1", "1.0"} {
				var data io.Reader = bytes.NewReader(nil)
				if version == "1.0" {
					data = bytes.NewReader(append(
						tartest.PAX10Map(tartest.SparseFileExtents), "DATA"...))
				}

				m, err := sparse.DecodePAX(sparseFileRecords(version), data)
				So(err, ShouldBeNil)
				So(m.RealSize, ShouldEqual, tartest.SparseFileSize)
				So(m.Extents, ShouldResemble, tartest.SparseFileExtents)

				if version == "1.0" {
					So(m.Format, ShouldEqual, sparse.FormatPAX10)
					So(m.Name, ShouldEqual, "sparsefile-1.0")
					So(m.MapSize, ShouldEqual, int64(sparse.BlockSize))

					rest, _ := io.ReadAll(data)
					So(string(rest), ShouldEqual, "DATA")
				}
			}
		})

		Convey("0.0 records must alternate", func() {
			_, err := sparse.DecodePAX(sparse.Records{
				{Key: sparse.PAXGNUSparseSize, Value: "100"},
				{Key: sparse.PAXGNUSparseNumBytes, Value: "10"},
				{Key: sparse.PAXGNUSparseOffset, Value: "0"},
			}, nil)
			So(errors.Is(err, sparse.ErrFormat), ShouldBeTrue)

			_, err = sparse.DecodePAX(sparse.Records{
				{Key: sparse.PAXGNUSparseSize, Value: "100"},
				{Key: sparse.PAXGNUSparseOffset, Value: "0"},
			}, nil)
			So(errors.Is(err, sparse.ErrFormat), ShouldBeTrue)
		})

		Convey("0.1 map with an odd number of fields", func() {
			_, err := sparse.DecodePAX(sparse.Records{
				{Key: sparse.PAXGNUSparseSize, Value: "100"},
				{Key: sparse.PAXGNUSparseMap, Value: "0,10,20"},
			}, nil)
			So(errors.Is(err, sparse.ErrFormat), ShouldBeTrue)
		})

		Convey("numblocks must match", func() {
			records := sparseFileRecords("0.1")
			records = append(records, sparse.Record{
				Key: sparse.PAXGNUSparseNumBlocks, Value: "4"})

			_, err := sparse.DecodePAX(records, nil)
			So(errors.Is(err, sparse.ErrFormat), ShouldBeTrue)
		})

		Convey("real size is required", func() {
			_, err := sparse.DecodePAX(sparse.Records{
				{Key: sparse.PAXGNUSparseMap, Value: "0,10"},
			}, nil)
			So(errors.Is(err, sparse.ErrFormat), ShouldBeTrue)
		})

		Convey("regressing 0.1 map", func() {
			_, err := sparse.DecodePAX(sparse.Records{
				{Key: sparse.PAXGNUSparseSize, Value: "5000"},
				{Key: sparse.PAXGNUSparseMap, Value: "1000,10,500,10"},
			}, nil)
			So(errors.Is(err, sparse.ErrFormat), ShouldBeTrue)
		})

		Convey("truncated 1.0 map", func() {
			_, err := sparse.DecodePAX(sparseFileRecords("1.0"),
				bytes.NewReader([]byte("3\n0\n2048\n")))
			So(errors.Is(err, sparse.ErrFormat), ShouldBeTrue)
			So(errors.Is(err, io.ErrUnexpectedEOF), ShouldBeTrue)
		})

		Convey("garbage 1.0 count", func() {
			_, err := sparse.DecodePAX(sparseFileRecords("1.0"),
				bytes.NewReader(tartest.Pad([]byte("many\n"))))
			So(errors.Is(err, sparse.ErrFormat), ShouldBeTrue)
		})

		Convey("1.0 map spanning blocks", func() {
			var extents []sparse.Extent
			for i := int64(0); i < 100; i++ {
				extents = append(extents, sparse.Extent{
					Offset: i * 1000000, NumBytes: 100})
			}
			records := sparse.Records{
				{Key: sparse.PAXGNUSparseMajor, Value: "1"},
				{Key: sparse.PAXGNUSparseMinor, Value: "0"},
				{Key: sparse.PAXGNUSparseRealSize, Value: "100000000"},
			}

			text := tartest.PAX10Map(extents)
			So(len(text), ShouldBeGreaterThan, sparse.BlockSize)

			data := bytes.NewReader(text)
			m, err := sparse.DecodePAX(records, data)
			So(err, ShouldBeNil)
			So(m.Extents, ShouldResemble, extents)
			So(m.MapSize, ShouldEqual, int64(len(text)))
			So(data.Len(), ShouldEqual, 0)
		})
	})
}

func TestRecordsGet(t *testing.T) {
	records := sparse.Records{
		{Key: "a", Value: "1"},
		{Key: "b", Value: "2"},
		{Key: "a", Value: "3"},
	}

	value, ok := records.Get("a")
	if !ok || value != "3" {
		t.Fatalf("Get(a) should return the last value, got %q", value)
	}

	if records.Has("c") {
		t.Fatalf("Has(c) should be false")
	}
}
