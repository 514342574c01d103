package sparse_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/Velocidex/go-splitarchive/internal/tartest"
	"github.com/Velocidex/go-splitarchive/sparse"
)

func reconstruct(m *sparse.Map, stored []byte) ([]byte, error) {
	r, err := sparse.NewReader(m, bytes.NewReader(stored))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

func TestReconstruct(t *testing.T) {
	t.Parallel()

	Convey("Reconstruction", t, func() {
		stored := tartest.Pattern(tartest.SparseFileStored)

		header := tartest.OldGNUHeader("sparsefile", tartest.SparseFileSize,
			tartest.SparseFileStored, tartest.SparseFileExtents, false)
		legacy, err := sparse.DecodeOldGNU(header, bytes.NewReader(nil))
		So(err, ShouldBeNil)

		expected, err := reconstruct(legacy, stored)
		So(err, ShouldBeNil)
		So(int64(len(expected)), ShouldEqual, tartest.SparseFileSize)

		Convey("data lands at the extent offsets", func() {
			So(expected[:2048], ShouldResemble, stored[:2048])
			So(expected[1050624:1050624+2560], ShouldResemble, stored[2048:])

			zeros := 0
			for _, c := range expected {
				if c == 0 {
					zeros++
				}
			}
			So(int64(zeros), ShouldEqual,
				tartest.SparseFileSize-tartest.SparseFileStored)
		})

		Convey("PAX formats reconstruct the same bytes", func() {
			for _, version := range []string{"0.0", "0.1", "1.0"} {
				var data io.Reader = bytes.NewReader(stored)
				if version == "1.0" {
					data = io.MultiReader(bytes.NewReader(
						tartest.PAX10Map(tartest.SparseFileExtents)),
						bytes.NewReader(stored))
				}

				m, err := sparse.DecodePAX(sparseFileRecords(version), data)
				So(err, ShouldBeNil)

				r, err := sparse.NewReader(m, data)
				So(err, ShouldBeNil)

				actual, err := io.ReadAll(r)
				So(err, ShouldBeNil)
				So(bytes.Equal(actual, expected), ShouldBeTrue)
			}
		})

		Convey("short stored data", func() {
			_, err := reconstruct(legacy, stored[:3000])
			So(errors.Is(err, sparse.ErrFormat), ShouldBeTrue)
			So(errors.Is(err, io.ErrUnexpectedEOF), ShouldBeTrue)
		})

		Convey("overrunning map is rejected", func() {
			m := &sparse.Map{
				RealSize: 100,
				Extents:  []sparse.Extent{{Offset: 90, NumBytes: 20}},
			}
			_, err := sparse.NewReader(m, bytes.NewReader(nil))
			So(errors.Is(err, sparse.ErrFormat), ShouldBeTrue)
		})

		Convey("trailing hole and small reads", func() {
			m := &sparse.Map{
				RealSize: 10,
				Extents: []sparse.Extent{
					{Offset: 2, NumBytes: 3},
					{Offset: 6, NumBytes: 1},
				},
			}
			r, err := sparse.NewReader(m, bytes.NewReader([]byte("abcd")))
			So(err, ShouldBeNil)

			var out []byte
			buf := make([]byte, 2)
			for {
				n, err := r.Read(buf)
				out = append(out, buf[:n]...)
				if err == io.EOF {
					break
				}
				So(err, ShouldBeNil)
			}
			So(out, ShouldResemble, []byte("\x00\x00abc\x00d\x00\x00\x00"))
		})

		Convey("empty file", func() {
			out, err := reconstruct(&sparse.Map{
				Extents: []sparse.Extent{{Offset: 0, NumBytes: 0}},
			}, nil)
			So(err, ShouldBeNil)
			So(out, ShouldHaveLength, 0)
		})
	})
}
