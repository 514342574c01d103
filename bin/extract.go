package main

import (
	"io"
	"os"

	"github.com/Velocidex/go-splitarchive/archive"
	"github.com/Velocidex/go-splitarchive/sparse"
	kingpin "github.com/alecthomas/kingpin/v2"
	"github.com/pkg/errors"
)

var (
	extract_command = app.Command(
		"extract", "Extract an entry, expanding sparse files.")

	extract_command_output = extract_command.Flag(
		"output", "Write here instead of stdout").Short('o').String()

	extract_command_entry_arg = extract_command.Arg(
		"entry", "The name of the entry to extract",
	).Required().String()

	extract_command_volumes_arg = extract_command.Arg(
		"volumes", "The volume files in order",
	).Required().Strings()
)

func doExtract() {
	reader, err := openVolumes(*extract_command_volumes_arg)
	kingpin.FatalIfError(err, "Can not open volumes")
	defer reader.Close()

	tar_reader := archive.NewReader(reader)
	for {
		entry, err := tar_reader.Next()
		if err == io.EOF {
			kingpin.Fatalf("Entry %v not found", *extract_command_entry_arg)
		}
		if errors.Is(err, sparse.ErrFormat) {
			continue
		}
		kingpin.FatalIfError(err, "Reading archive")

		if entry.Name != *extract_command_entry_arg {
			continue
		}

		var out io.Writer = os.Stdout
		if *extract_command_output != "" {
			fd, err := os.Create(*extract_command_output)
			kingpin.FatalIfError(err, "Create output")
			defer fd.Close()
			out = fd
		}

		_, err = io.Copy(out, tar_reader)
		kingpin.FatalIfError(err, "Extract %v", entry.Name)
		return
	}
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case extract_command.FullCommand():
			doExtract()
		default:
			return false
		}
		return true
	})
}
