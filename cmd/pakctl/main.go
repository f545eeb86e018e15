// Command pakctl is a small driver over the pak archive façades: create,
// inspect, add, read, remove, move, fsck and gc a PAK file from the shell.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/CasualX/pak-rs/pkg/core/archive"
	"github.com/CasualX/pak-rs/pkg/core/record"
	infraconfig "github.com/CasualX/pak-rs/pkg/infrastructure/config"
	"github.com/CasualX/pak-rs/pkg/infrastructure/logging"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	configFile := flag.String("config", "", "Configuration file path")
	cmd := os.Args[1]
	args := os.Args[2:]

	cfg, err := infraconfig.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pakctl: %s\n", err)
		os.Exit(1)
	}
	level, _ := logging.ParseLevel(cfg.Logging.Level)
	log := logging.New(&logging.Config{Level: level, Format: logging.TextFormat, Output: os.Stderr}).WithComponent(cmd)

	var runErr error
	switch cmd {
	case "new":
		runErr = cmdNew(args)
	case "tree":
		runErr = cmdTree(args)
	case "add":
		runErr = cmdAdd(args)
	case "cat":
		runErr = cmdCat(args)
	case "rm":
		runErr = cmdRm(args)
	case "mv":
		runErr = cmdMv(args)
	case "fsck":
		runErr = cmdFsck(args)
	case "gc":
		runErr = cmdGc(args)
	default:
		usage()
		os.Exit(2)
	}

	if runErr != nil {
		log.Error(runErr.Error())
		fmt.Fprintf(os.Stderr, "pakctl %s: %s\n", cmd, runErr)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: pakctl <new|tree|add|cat|rm|mv|fsck|gc> [flags] <archive> ...")
}

func parseKey(hexKey string) (archive.Key, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil || len(raw) != 16 {
		return archive.Key{}, fmt.Errorf("key must be 32 hex characters (16 bytes), got %q", hexKey)
	}
	var k archive.Key
	k[0] = leUint64(raw[0:8])
	k[1] = leUint64(raw[8:16])
	return k, nil
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func cmdNew(args []string) error {
	fs := flag.NewFlagSet("new", flag.ExitOnError)
	key := fs.String("key", "", "128-bit key, 32 hex characters")
	fs.Parse(args)
	if fs.NArg() != 1 || *key == "" {
		return fmt.Errorf("usage: pakctl new -key <hex> <archive>")
	}
	k, err := parseKey(*key)
	if err != nil {
		return err
	}
	return archive.CreateEmptyFile(fs.Arg(0), k)
}

func cmdTree(args []string) error {
	fs := flag.NewFlagSet("tree", flag.ExitOnError)
	key := fs.String("key", "", "128-bit key, 32 hex characters")
	fs.Parse(args)
	if fs.NArg() != 1 || *key == "" {
		return fmt.Errorf("usage: pakctl tree -key <hex> <archive>")
	}
	k, err := parseKey(*key)
	if err != nil {
		return err
	}
	r, err := archive.OpenFileReader(fs.Arg(0), k)
	if err != nil {
		return err
	}
	defer r.Close()
	fmt.Print(r.Directory().Display())
	return nil
}

func cmdAdd(args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	key := fs.String("key", "", "128-bit key, 32 hex characters")
	fs.Parse(args)
	if fs.NArg() != 3 || *key == "" {
		return fmt.Errorf("usage: pakctl add -key <hex> <archive> <path-in-archive> <source-file>")
	}
	k, err := parseKey(*key)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(fs.Arg(2))
	if err != nil {
		return err
	}
	e, err := archive.OpenFile(fs.Arg(0), k)
	if err != nil {
		return err
	}
	if _, err := e.CreateFile([]byte(fs.Arg(1)), data, k); err != nil {
		e.Close()
		return err
	}
	if err := e.Finish(k); err != nil {
		e.Close()
		return err
	}
	return e.Close()
}

func cmdCat(args []string) error {
	fs := flag.NewFlagSet("cat", flag.ExitOnError)
	key := fs.String("key", "", "128-bit key, 32 hex characters")
	fs.Parse(args)
	if fs.NArg() != 2 || *key == "" {
		return fmt.Errorf("usage: pakctl cat -key <hex> <archive> <path-in-archive>")
	}
	k, err := parseKey(*key)
	if err != nil {
		return err
	}
	r, err := archive.OpenFileReader(fs.Arg(0), k)
	if err != nil {
		return err
	}
	defer r.Close()
	desc, ok := r.Directory().FindFile([]byte(fs.Arg(1)))
	if !ok {
		return fmt.Errorf("%s: not found", fs.Arg(1))
	}
	data, err := r.ReadData(desc, k)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func cmdRm(args []string) error {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	key := fs.String("key", "", "128-bit key, 32 hex characters")
	fs.Parse(args)
	if fs.NArg() != 2 || *key == "" {
		return fmt.Errorf("usage: pakctl rm -key <hex> <archive> <path-in-archive>")
	}
	k, err := parseKey(*key)
	if err != nil {
		return err
	}
	e, err := archive.OpenFile(fs.Arg(0), k)
	if err != nil {
		return err
	}
	if _, ok := e.Directory().Remove([]byte(fs.Arg(1))); !ok {
		e.Close()
		return fmt.Errorf("%s: not found", fs.Arg(1))
	}
	if err := e.Finish(k); err != nil {
		e.Close()
		return err
	}
	return e.Close()
}

func cmdMv(args []string) error {
	fs := flag.NewFlagSet("mv", flag.ExitOnError)
	key := fs.String("key", "", "128-bit key, 32 hex characters")
	fs.Parse(args)
	if fs.NArg() != 3 || *key == "" {
		return fmt.Errorf("usage: pakctl mv -key <hex> <archive> <src-path> <dest-path>")
	}
	k, err := parseKey(*key)
	if err != nil {
		return err
	}
	e, err := archive.OpenFile(fs.Arg(0), k)
	if err != nil {
		return err
	}
	if !e.Directory().MoveFile([]byte(fs.Arg(1)), []byte(fs.Arg(2))) {
		e.Close()
		return fmt.Errorf("%s: not a file, or not found", fs.Arg(1))
	}
	if err := e.Finish(k); err != nil {
		e.Close()
		return err
	}
	return e.Close()
}

func cmdFsck(args []string) error {
	fs := flag.NewFlagSet("fsck", flag.ExitOnError)
	key := fs.String("key", "", "128-bit key, 32 hex characters")
	fs.Parse(args)
	if fs.NArg() != 1 || *key == "" {
		return fmt.Errorf("usage: pakctl fsck -key <hex> <archive>")
	}
	k, err := parseKey(*key)
	if err != nil {
		return err
	}
	r, err := archive.OpenFileReader(fs.Arg(0), k)
	if err != nil {
		return err
	}
	defer r.Close()
	if !r.Directory().Fsck(r.HighMark(), os.Stdout) {
		return fmt.Errorf("fsck found structural errors")
	}
	fmt.Println("ok")
	return nil
}

func cmdGc(args []string) error {
	fs := flag.NewFlagSet("gc", flag.ExitOnError)
	key := fs.String("key", "", "128-bit key, 32 hex characters")
	fs.Parse(args)
	if fs.NArg() != 1 || *key == "" {
		return fmt.Errorf("usage: pakctl gc -key <hex> <archive>")
	}
	k, err := parseKey(*key)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	e, err := archive.NewMemoryEditorFromBytes(data, k)
	if err != nil {
		return err
	}
	e.GC()
	blocks, _, err := e.Finish(k)
	if err != nil {
		return err
	}
	return os.WriteFile(fs.Arg(0), record.BlocksToBytes(blocks), 0o644)
}
