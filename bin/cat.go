package main

import (
	"io"
	"os"

	kingpin "github.com/alecthomas/kingpin/v2"
)

var (
	cat_command = app.Command(
		"cat", "Write the joined volumes to stdout.")

	cat_command_offset = cat_command.Flag(
		"offset", "Start reading at this offset").Int64()

	cat_command_length = cat_command.Flag(
		"length", "Only read this many bytes (0 reads to the end)").Int64()

	cat_command_volumes_arg = cat_command.Arg(
		"volumes", "The volume files in order",
	).Required().Strings()
)

func doCat() {
	reader, err := openVolumes(*cat_command_volumes_arg)
	kingpin.FatalIfError(err, "Can not open volumes")
	defer reader.Close()

	_, err = reader.Seek(*cat_command_offset, io.SeekStart)
	kingpin.FatalIfError(err, "Seek")

	if *cat_command_length > 0 {
		_, err = io.CopyN(os.Stdout, reader, *cat_command_length)
		if err == io.EOF {
			err = nil
		}
	} else {
		_, err = io.Copy(os.Stdout, reader)
	}
	kingpin.FatalIfError(err, "Read")
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case cat_command.FullCommand():
			doCat()
		default:
			return false
		}
		return true
	})
}
