package main

import (
	"io"
	"os"

	kingpin "github.com/alecthomas/kingpin/v2"
)

type CommandHandler func(command string) bool

var (
	app = kingpin.New("splitarchive",
		"A tool for inspecting tar archives split over several volumes.")

	verbose_flag = app.Flag(
		"verbose", "Show verbose information").Bool()

	page_size_flag = app.Flag(
		"page_size", "Page size of the volume cache").
		Default("1024").Int64()

	cache_size_flag = app.Flag(
		"cache_size", "Number of pages cached per volume").
		Default("10000").Int()

	mmap_flag = app.Flag(
		"mmap", "Map the volumes into memory instead of paging them").Bool()

	command_handlers []CommandHandler
)

func main() {
	app.HelpFlag.Short('h')
	app.UsageTemplate(kingpin.CompactUsageTemplate)
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	for _, command_handler := range command_handlers {
		if command_handler(command) {
			break
		}
	}
}

// getReader is where every volume file passes before it is paged, so
// platform specific readers can be substituted.
func getReader(reader io.ReaderAt) io.ReaderAt {
	return reader
}
