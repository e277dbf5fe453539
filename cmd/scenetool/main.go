// scenetool inspects, converts and serves scene files.
//
//	scenetool info -in scene.bin
//	scenetool convert -in scene.bin -out scene.xml
//	scenetool patch -in scene.xml -patch fixup.xml -out patched.xml
//	scenetool serve -in scene.bin -transport ws -addr 127.0.0.1:7777
//	scenetool bench-load -in scene.bin
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "info":
		err = cmdInfo(os.Args[2:])
	case "convert":
		err = cmdConvert(os.Args[2:])
	case "patch":
		err = cmdPatch(os.Args[2:])
	case "serve":
		err = cmdServe(os.Args[2:])
	case "bench-load":
		err = cmdBenchLoad(os.Args[2:])
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: scenetool <command> [flags]

commands:
  info        print structure statistics of a scene file
  convert     convert a scene file between binary, XML and JSON
  patch       apply an XML patch file to an XML scene
  serve       load a scene and run a replication server
  bench-load  async-load a scene printing progress`)
}
