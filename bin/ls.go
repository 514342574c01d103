package main

import (
	"fmt"
	"io"

	"github.com/Velocidex/go-splitarchive/archive"
	"github.com/Velocidex/go-splitarchive/sparse"
	kingpin "github.com/alecthomas/kingpin/v2"
	"github.com/pkg/errors"
)

var (
	ls_command = app.Command(
		"ls", "List the entries of the archive.")

	ls_command_volumes_arg = ls_command.Arg(
		"volumes", "The volume files in order",
	).Required().Strings()
)

type entryInfo struct {
	*archive.Entry

	SparseFormat string `json:"SparseFormat,omitempty"`
	Volume       int    `json:"Volume"`
	VolumeName   string `json:"VolumeName,omitempty"`
	Error        string `json:"Error,omitempty"`
}

func doLs() {
	reader, err := openVolumes(*ls_command_volumes_arg)
	kingpin.FatalIfError(err, "Can not open volumes")
	defer reader.Close()

	tar_reader := archive.NewReader(reader)
	for {
		start := tar_reader.Offset()

		entry, err := tar_reader.Next()
		if err == io.EOF {
			return
		}

		// A broken sparse map only spoils its own entry.
		if errors.Is(err, sparse.ErrFormat) {
			info := &entryInfo{Error: err.Error()}
			info.Volume, info.VolumeName = volumeFor(reader, start)
			Dump(info)
			continue
		}
		kingpin.FatalIfError(err, "Reading archive")

		info := &entryInfo{Entry: entry}
		info.Volume, info.VolumeName = volumeFor(reader, entry.HeaderOffset)
		if entry.IsSparse() {
			info.SparseFormat = entry.SparseFormat().String()
		}
		Dump(info)

		if *verbose_flag && entry.IsSparse() {
			fmt.Println(entry.Sparse.DebugString())
		}
	}
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case ls_command.FullCommand():
			doLs()
		default:
			return false
		}
		return true
	})
}
