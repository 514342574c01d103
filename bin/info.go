package main

import (
	"github.com/Velocidex/go-splitarchive/parser"
	kingpin "github.com/alecthomas/kingpin/v2"
)

var (
	info_command = app.Command(
		"info", "Show how the volumes are laid out in the joined stream.")

	info_command_volumes_arg = info_command.Arg(
		"volumes", "The volume files in order",
	).Required().Strings()
)

func doInfo() {
	reader, err := openVolumes(*info_command_volumes_arg)
	kingpin.FatalIfError(err, "Can not open volumes")
	defer reader.Close()

	concat, ok := reader.(*parser.ConcatReader)
	if !ok {
		concat = parser.NewConcatReader([]parser.Segment{reader})
	}

	if *verbose_flag {
		concat.Debug()
	}

	Dump(concat.Stats())
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case info_command.FullCommand():
			doInfo()
		default:
			return false
		}
		return true
	})
}
