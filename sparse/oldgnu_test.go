package sparse_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/sebdah/goldie"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/Velocidex/go-splitarchive/internal/tartest"
	"github.com/Velocidex/go-splitarchive/sparse"
)

func TestOldGNU(t *testing.T) {
	t.Parallel()

	Convey("Old GNU sparse headers", t, func() {
		Convey("inline map", func() {
			header := tartest.OldGNUHeader("sparsefile", tartest.SparseFileSize,
				tartest.SparseFileStored, tartest.SparseFileExtents, false)

			m, err := sparse.DecodeOldGNU(header, bytes.NewReader(nil))
			So(err, ShouldBeNil)
			So(m.Format, ShouldEqual, sparse.FormatOldGNU)
			So(m.RealSize, ShouldEqual, tartest.SparseFileSize)
			So(m.Extents, ShouldResemble, tartest.SparseFileExtents)
			So(m.StoredSize(), ShouldEqual, tartest.SparseFileStored)
			So(m.DataExtents(), ShouldHaveLength, 2)
		})

		Convey("extended map", func() {
			header := tartest.OldGNUHeader("sparse6", tartest.Sparse6Size,
				tartest.Sparse6Stored, tartest.Sparse6Extents[:4], true)
			ext := tartest.ExtensionBlock(tartest.Sparse6Extents[4:], false)
			next := bytes.NewReader(append(ext[:], "DATA"...))

			m, err := sparse.DecodeOldGNU(header, next)
			So(err, ShouldBeNil)
			So(m.Extents, ShouldResemble, tartest.Sparse6Extents)

			// The reader is left at the entry data.
			rest, _ := io.ReadAll(next)
			So(string(rest), ShouldEqual, "DATA")
		})

		Convey("pairs after the terminator are padding", func() {
			extents := append([]sparse.Extent{}, tartest.Sparse6Extents[4:]...)
			extents = append(extents, sparse.Extent{Offset: 60000, NumBytes: 10})

			header := tartest.OldGNUHeader("sparse6", tartest.Sparse6Size,
				tartest.Sparse6Stored, tartest.Sparse6Extents[:4], true)
			first := tartest.ExtensionBlock(extents, true)
			second := tartest.ExtensionBlock([]sparse.Extent{
				{Offset: 70000, NumBytes: 10}}, false)

			var stream []byte
			stream = append(stream, first[:]...)
			stream = append(stream, second[:]...)
			next := bytes.NewReader(stream)

			m, err := sparse.DecodeOldGNU(header, next)
			So(err, ShouldBeNil)
			So(m.Extents, ShouldResemble, tartest.Sparse6Extents)

			// Both extension blocks were consumed.
			So(next.Len(), ShouldEqual, 0)
		})

		Convey("a bad field still consumes the whole chain", func() {
			header := tartest.OldGNUHeader("sparse6", tartest.Sparse6Size,
				tartest.Sparse6Stored, tartest.Sparse6Extents[:4], true)
			first := tartest.ExtensionBlock(tartest.Sparse6Extents[4:5], true)
			first[0] = '9'
			second := tartest.ExtensionBlock(tartest.Sparse6Extents[5:], false)

			var stream []byte
			stream = append(stream, first[:]...)
			stream = append(stream, second[:]...)
			stream = append(stream, "DATA"...)
			next := bytes.NewReader(stream)

			_, err := sparse.DecodeOldGNU(header, next)
			So(errors.Is(err, sparse.ErrFormat), ShouldBeTrue)

			rest, _ := io.ReadAll(next)
			So(string(rest), ShouldEqual, "DATA")
		})

		Convey("zero length first extent is kept", func() {
			header := tartest.OldGNUHeader("empty", 250, 50, []sparse.Extent{
				{Offset: 100, NumBytes: 0},
				{Offset: 200, NumBytes: 50},
			}, false)

			m, err := sparse.DecodeOldGNU(header, bytes.NewReader(nil))
			So(err, ShouldBeNil)
			So(m.Extents, ShouldHaveLength, 2)

			header = tartest.OldGNUHeader("empty", 0, 0, []sparse.Extent{
				{Offset: 0, NumBytes: 0},
			}, false)

			m, err = sparse.DecodeOldGNU(header, bytes.NewReader(nil))
			So(err, ShouldBeNil)
			So(m.Extents, ShouldResemble, []sparse.Extent{{Offset: 0, NumBytes: 0}})
		})

		Convey("missing extension block", func() {
			header := tartest.OldGNUHeader("sparse6", tartest.Sparse6Size,
				tartest.Sparse6Stored, tartest.Sparse6Extents[:4], true)

			_, err := sparse.DecodeOldGNU(header, bytes.NewReader([]byte("short")))
			So(errors.Is(err, sparse.ErrFormat), ShouldBeTrue)
			So(errors.Is(err, io.ErrUnexpectedEOF), ShouldBeTrue)
		})

		Convey("regressing offsets", func() {
			header := tartest.OldGNUHeader("bad", 5000, 20, []sparse.Extent{
				{Offset: 1000, NumBytes: 10},
				{Offset: 500, NumBytes: 10},
			}, false)

			_, err := sparse.DecodeOldGNU(header, bytes.NewReader(nil))
			So(errors.Is(err, sparse.ErrFormat), ShouldBeTrue)
		})

		Convey("overlapping extents", func() {
			header := tartest.OldGNUHeader("bad", 5000, 200, []sparse.Extent{
				{Offset: 0, NumBytes: 100},
				{Offset: 50, NumBytes: 100},
			}, false)

			_, err := sparse.DecodeOldGNU(header, bytes.NewReader(nil))
			So(errors.Is(err, sparse.ErrFormat), ShouldBeTrue)
		})

		Convey("extent past the real size", func() {
			header := tartest.OldGNUHeader("bad", 100, 60, []sparse.Extent{
				{Offset: 50, NumBytes: 60},
			}, false)

			_, err := sparse.DecodeOldGNU(header, bytes.NewReader(nil))
			So(errors.Is(err, sparse.ErrFormat), ShouldBeTrue)
		})

		Convey("not a GNU header", func() {
			header := tartest.OldGNUHeader("star", tartest.SparseFileSize,
				tartest.SparseFileStored, tartest.SparseFileExtents, false)
			copy(header[257:265], "ustar\x0000")

			_, err := sparse.DecodeOldGNU(header, bytes.NewReader(nil))
			So(errors.Is(err, sparse.ErrFormat), ShouldBeTrue)

			regular := tartest.Header("file", sparse.TypeReg, 10)
			_, err = sparse.DecodeOldGNU(regular, bytes.NewReader(nil))
			So(errors.Is(err, sparse.ErrFormat), ShouldBeTrue)
		})
	})
}

func TestOldGNUExtendedDebug(t *testing.T) {
	header := tartest.OldGNUHeader("sparse6", tartest.Sparse6Size,
		tartest.Sparse6Stored, tartest.Sparse6Extents[:4], true)
	ext := tartest.ExtensionBlock(tartest.Sparse6Extents[4:], false)

	m, err := sparse.DecodeOldGNU(header, bytes.NewReader(ext[:]))
	if err != nil {
		t.Fatalf("DecodeOldGNU: %v", err)
	}

	goldie.Assert(t, "TestOldGNUExtendedDebug", []byte(m.DebugString()))
}
