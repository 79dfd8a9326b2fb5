// Command sealfsctl is a thin CLI over pkg/sealclient, exercising the
// client API end-to-end the way cmd/camget exercises pkg/client: each
// subcommand parses its own flags and makes one or two calls, with no
// framework beyond the standard flag package (spec.md's Non-goals put a
// full manager admin CLI out of scope; this is just enough to drive the
// library from a terminal).
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/sealfs-project/sealfs/pkg/proto"
	"github.com/sealfs-project/sealfs/pkg/sealclient"
)

var flagManager = flag.String("manager", "", "manager daemon address (required)")

func usage() {
	fmt.Fprintf(os.Stderr, `usage: sealfsctl -manager addr <command> [args]

commands:
  mkvol  <name> <capacity-bytes>     create a volume
  rmvol  <name>                      delete a volume
  mkdir  <dir> <name> <mode>         create a directory
  create <dir> <name> <mode>         create a file
  write  <path> <offset>             write stdin to path at offset
  read   <path> <offset> <size>      read size bytes from path to stdout
  stat   <path>                      print path's attribute record
  ls     <dir>                       list dir's entries
  rm     <dir> <name>                delete a file
  rmdir  <dir> <name>                delete a directory
  volumes                            list volumes anywhere in the cluster
`)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	logger := log.New(os.Stderr, "sealfsctl: ", 0)

	args := flag.Args()
	if *flagManager == "" || len(args) == 0 {
		usage()
		os.Exit(2)
	}

	ctx := context.Background()
	c, err := sealclient.Dial(ctx, *flagManager, logger)
	if err != nil {
		logger.Fatalf("dial %s: %v", *flagManager, err)
	}
	defer c.Close()

	cmd, rest := args[0], args[1:]
	if err := run(ctx, c, cmd, rest); err != nil {
		logger.Fatal(err)
	}
}

func run(ctx context.Context, c *sealclient.Client, cmd string, args []string) error {
	switch cmd {
	case "mkvol":
		return cmdMkvol(ctx, c, args)
	case "rmvol":
		return cmdRmvol(ctx, c, args)
	case "mkdir":
		return cmdMkdir(ctx, c, args)
	case "create":
		return cmdCreate(ctx, c, args)
	case "write":
		return cmdWrite(ctx, c, args)
	case "read":
		return cmdRead(ctx, c, args)
	case "stat":
		return cmdStat(ctx, c, args)
	case "ls":
		return cmdLs(ctx, c, args)
	case "rm":
		return cmdRm(ctx, c, args)
	case "rmdir":
		return cmdRmdir(ctx, c, args)
	case "volumes":
		return cmdVolumes(ctx, c, args)
	default:
		usage()
		os.Exit(2)
		return nil
	}
}

func printAttr(attr proto.FileAttr) {
	fmt.Printf("kind=%v mode=%o size=%d\n", attr.Kind, attr.Mode, attr.Size)
}

func cmdMkvol(ctx context.Context, c *sealclient.Client, args []string) error {
	fs := flag.NewFlagSet("mkvol", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: mkvol <name> <capacity-bytes>")
	}
	capacity, err := parseUint(fs.Arg(1))
	if err != nil {
		return err
	}
	attr, err := c.CreateVolume(ctx, fs.Arg(0), capacity)
	if err != nil {
		return err
	}
	printAttr(attr)
	return nil
}

func cmdRmvol(ctx context.Context, c *sealclient.Client, args []string) error {
	fs := flag.NewFlagSet("rmvol", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: rmvol <name>")
	}
	return c.DeleteVolume(ctx, fs.Arg(0))
}

func cmdMkdir(ctx context.Context, c *sealclient.Client, args []string) error {
	fs := flag.NewFlagSet("mkdir", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 3 {
		return fmt.Errorf("usage: mkdir <dir> <name> <mode>")
	}
	mode, err := parseMode(fs.Arg(2))
	if err != nil {
		return err
	}
	attr, err := c.CreateDir(ctx, fs.Arg(0), fs.Arg(1), mode)
	if err != nil {
		return err
	}
	printAttr(attr)
	return nil
}

func cmdCreate(ctx context.Context, c *sealclient.Client, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 3 {
		return fmt.Errorf("usage: create <dir> <name> <mode>")
	}
	mode, err := parseMode(fs.Arg(2))
	if err != nil {
		return err
	}
	attr, err := c.CreateFile(ctx, fs.Arg(0), fs.Arg(1), 0, 0, mode)
	if err != nil {
		return err
	}
	printAttr(attr)
	return nil
}

func cmdWrite(ctx context.Context, c *sealclient.Client, args []string) error {
	fs := flag.NewFlagSet("write", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: write <path> <offset>")
	}
	offset, err := parseUint(fs.Arg(1))
	if err != nil {
		return err
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return err
	}
	attr, err := c.WriteFile(ctx, fs.Arg(0), offset, data)
	if err != nil {
		return err
	}
	printAttr(attr)
	return nil
}

func cmdRead(ctx context.Context, c *sealclient.Client, args []string) error {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 3 {
		return fmt.Errorf("usage: read <path> <offset> <size>")
	}
	offset, err := parseUint(fs.Arg(1))
	if err != nil {
		return err
	}
	size, err := parseUint(fs.Arg(2))
	if err != nil {
		return err
	}
	data, err := c.ReadFile(ctx, fs.Arg(0), offset, uint32(size))
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func cmdStat(ctx context.Context, c *sealclient.Client, args []string) error {
	fs := flag.NewFlagSet("stat", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: stat <path>")
	}
	attr, err := c.GetFileAttr(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	printAttr(attr)
	return nil
}

func cmdLs(ctx context.Context, c *sealclient.Client, args []string) error {
	fs := flag.NewFlagSet("ls", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: ls <dir>")
	}
	entries, err := c.ReadDir(ctx, fs.Arg(0), 0, proto.MaxMetaLen)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%v\t%s\n", e.FileType, e.FileName)
	}
	return nil
}

func cmdRm(ctx context.Context, c *sealclient.Client, args []string) error {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: rm <dir> <name>")
	}
	return c.DeleteFile(ctx, fs.Arg(0), fs.Arg(1))
}

func cmdRmdir(ctx context.Context, c *sealclient.Client, args []string) error {
	fs := flag.NewFlagSet("rmdir", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: rmdir <dir> <name>")
	}
	return c.DeleteDir(ctx, fs.Arg(0), fs.Arg(1))
}

func cmdVolumes(ctx context.Context, c *sealclient.Client, args []string) error {
	vols, err := c.ListVolumesAnywhere(ctx)
	if err != nil {
		return err
	}
	for _, v := range vols {
		fmt.Printf("%s\tsize_limit=%d\tused=%d\n", v.Name, v.SizeLimit, v.UsedSize)
	}
	return nil
}

func parseUint(s string) (uint64, error) {
	var v uint64
	_, err := fmt.Sscanf(s, "%d", &v)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return v, nil
}

func parseMode(s string) (uint32, error) {
	var v uint32
	_, err := fmt.Sscanf(s, "%o", &v)
	if err != nil {
		return 0, fmt.Errorf("invalid octal mode %q: %w", s, err)
	}
	return v, nil
}
