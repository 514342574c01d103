package parser

type SegmentStat struct {
	Index         int    `json:"Index"`
	Name          string `json:"Name,omitempty"`
	VirtualOffset int64  `json:"VirtualOffset"`
	Size          int64  `json:"Size"`
	Error         string `json:"Error,omitempty"`
}

type ConcatStats struct {
	TotalSize      int64         `json:"TotalSize"`
	Position       int64         `json:"Position"`
	CurrentSegment int           `json:"CurrentSegment"`
	Segments       []SegmentStat `json:"Segments"`
}

func (self *ConcatReader) Stats() ConcatStats {
	self.mu.Lock()
	res := ConcatStats{
		Position:       self.global_position,
		CurrentSegment: self.current_idx,
	}
	self.mu.Unlock()

	for i, s := range self.segments {
		stat := SegmentStat{
			Index:         i,
			VirtualOffset: res.TotalSize,
		}

		if namer, ok := s.(Namer); ok {
			stat.Name = namer.Name()
		}

		size, err := s.Size()
		if err != nil {
			stat.Error = err.Error()
		}
		stat.Size = size
		res.TotalSize += size

		res.Segments = append(res.Segments, stat)
	}

	return res
}
