package main

import (
	"os"

	"github.com/Velocidex/go-splitarchive/parser"
	"github.com/pkg/errors"
	"golang.org/x/exp/mmap"
	ntfs_parser "www.velocidex.com/golang/go-ntfs/parser"
)

func openVolume(filename string) (parser.Segment, error) {
	if *mmap_flag {
		mapped, err := mmap.Open(filename)
		if err != nil {
			return nil, err
		}
		return parser.NewReaderAtSegment(
			filename, mapped, int64(mapped.Len()), mapped.Close), nil
	}

	fd, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	st, err := fd.Stat()
	if err != nil {
		fd.Close()
		return nil, err
	}

	reader, err := ntfs_parser.NewPagedReader(
		getReader(fd), *page_size_flag, *cache_size_flag)
	if err != nil {
		fd.Close()
		return nil, err
	}

	return parser.NewReaderAtSegment(filename, reader, st.Size(), fd.Close), nil
}

// openVolumes opens the volumes in order as one stream.
func openVolumes(filenames []string) (parser.Segment, error) {
	segments := make([]parser.Segment, 0, len(filenames))
	for _, filename := range filenames {
		segment, err := openVolume(filename)
		if err != nil {
			for _, s := range segments {
				s.Close()
			}
			return nil, errors.Wrapf(err, "While opening %v", filename)
		}
		segments = append(segments, segment)
	}

	return parser.ForSegments(segments...)
}

// volumeFor finds the volume holding the stream offset.
func volumeFor(reader parser.Segment, offset int64) (int, string) {
	concat, ok := reader.(*parser.ConcatReader)
	if !ok {
		name := ""
		if namer, ok := reader.(parser.Namer); ok {
			name = namer.Name()
		}
		return 0, name
	}

	stats := concat.Stats()
	for i := len(stats.Segments) - 1; i >= 0; i-- {
		s := stats.Segments[i]
		if s.Size > 0 && offset >= s.VirtualOffset {
			return s.Index, s.Name
		}
	}
	return 0, ""
}
