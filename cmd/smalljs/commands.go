package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/chazu/smalljs/asm"
	"github.com/chazu/smalljs/image"
	"github.com/chazu/smalljs/object"
	"github.com/chazu/smalljs/store"
	"github.com/chazu/smalljs/vm"
)

// imageExt marks files holding an encoded image rather than source.
const imageExt = ".img"

// loadProgram reads a source or image file and returns its dictionary and
// entry function.
func loadProgram(path string) (*vm.Dictionary, *object.Object, error) {
	if strings.EqualFold(filepath.Ext(path), imageExt) {
		img, err := readImage(path)
		if err != nil {
			return nil, nil, err
		}
		return img.Load()
	}
	prog, err := assembleFile(path)
	if err != nil {
		return nil, nil, err
	}
	return prog.Dict, prog.Entry, nil
}

func assembleFile(path string) (*asm.Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	prog, err := asm.AssembleReader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Debugf("assembled %s: %d functions, %d constants", path, len(prog.Functions), prog.Dict.Len())
	return prog, nil
}

func readImage(path string) (*image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := image.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// execute runs entry and maps its result to an exit code: an int result
// in 0..255 becomes the code, anything else is printed.
func (c *cli) execute(dict *vm.Dictionary, entry *object.Object) (int, error) {
	result, err := vm.Run(entry, dict, c.stdout, c.cfg)
	if err != nil {
		return 0, err
	}
	log.Infof("%s returned %v", entry.Name(), result)
	switch r := result.(type) {
	case int:
		if r >= 0 && r <= 255 {
			return r, nil
		}
	case object.UndefinedType:
		return 0, nil
	}
	fmt.Fprintln(c.stdout, result)
	return 0, nil
}

// sourceArg returns the single file argument, or the manifest entry when
// a smalljs.toml was found and no argument is given.
func (c *cli) sourceArg(cmd string, args []string) (string, error) {
	switch len(args) {
	case 0:
		if c.manifest.Project.Entry != "" {
			return c.manifest.EntryPath(), nil
		}
	case 1:
		return args[0], nil
	}
	return "", fmt.Errorf("usage: smalljs %s FILE", cmd)
}

func (c *cli) runCommand(args []string) (int, error) {
	path, err := c.sourceArg("run", args)
	if err != nil {
		return 2, err
	}
	dict, entry, err := loadProgram(path)
	if err != nil {
		return 0, err
	}
	return c.execute(dict, entry)
}

func (c *cli) execCommand(args []string) (int, error) {
	if len(args) != 1 {
		return 2, fmt.Errorf("usage: smalljs exec FILE%s", imageExt)
	}
	img, err := readImage(args[0])
	if err != nil {
		return 0, err
	}
	dict, entry, err := img.Load()
	if err != nil {
		return 0, err
	}
	return c.execute(dict, entry)
}

func (c *cli) buildCommand(args []string) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	out := fs.String("o", "", "Output image path (default: source name with "+imageExt+")")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := c.sourceArg("build", fs.Args())
	if err != nil {
		return err
	}
	if *out == "" {
		*out = strings.TrimSuffix(path, filepath.Ext(path)) + imageExt
	}

	prog, err := assembleFile(path)
	if err != nil {
		return err
	}
	img, err := image.FromDictionary(prog.Dict, prog.Entry)
	if err != nil {
		return err
	}
	data, err := image.Marshal(img)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "%s %s\n", image.HashBytes(data), *out)
	return nil
}

func (c *cli) disCommand(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: smalljs dis FILE")
	}
	path := args[0]
	if !strings.EqualFold(filepath.Ext(path), imageExt) {
		prog, err := assembleFile(path)
		if err != nil {
			return err
		}
		fmt.Fprint(c.stdout, prog.Disassemble())
		return nil
	}

	img, err := readImage(path)
	if err != nil {
		return err
	}
	dict, _, err := img.Load()
	if err != nil {
		return err
	}
	first := true
	for _, v := range dict.Entries() {
		fn, ok := v.(*object.Object)
		if !ok {
			continue
		}
		code, ok, _ := vm.CodeOf(fn)
		if !ok || code == nil {
			continue
		}
		if !first {
			fmt.Fprintln(c.stdout)
		}
		first = false
		fmt.Fprintf(c.stdout, "func %s\n", fn.Name())
		fmt.Fprint(c.stdout, vm.Disassemble(code, dict))
	}
	return nil
}

func (c *cli) storeCommand(args []string) (int, error) {
	if len(args) == 0 {
		return 2, fmt.Errorf("usage: smalljs store put|run|ls|rm")
	}
	ctx := context.Background()
	s, err := store.Open(ctx, c.manifest.StorePath())
	if err != nil {
		return 0, err
	}
	defer s.Close()

	switch args[0] {
	case "put":
		return 0, c.storePut(ctx, s, args[1:])
	case "run":
		if len(args) != 2 {
			return 2, fmt.Errorf("usage: smalljs store run NAME|HASH")
		}
		img, hash, err := s.Resolve(ctx, args[1])
		if err != nil {
			return 0, err
		}
		log.Debugf("running stored image %s", hash)
		dict, entry, err := img.Load()
		if err != nil {
			return 0, err
		}
		return c.execute(dict, entry)
	case "ls":
		return 0, c.storeList(ctx, s)
	case "rm":
		if len(args) != 2 {
			return 2, fmt.Errorf("usage: smalljs store rm NAME|HASH")
		}
		_, hash, err := s.Resolve(ctx, args[1])
		if err != nil {
			return 0, err
		}
		return 0, s.Delete(ctx, hash)
	}
	return 2, fmt.Errorf("unknown store command %q", args[0])
}

func (c *cli) storePut(ctx context.Context, s *store.Store, args []string) error {
	fs := flag.NewFlagSet("store put", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	name := fs.String("name", "", "Name to store the image under (default: file base name)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := c.sourceArg("store put", fs.Args())
	if err != nil {
		return err
	}
	if *name == "" {
		base := filepath.Base(path)
		*name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	var img *image.Image
	if strings.EqualFold(filepath.Ext(path), imageExt) {
		img, err = readImage(path)
	} else {
		var prog *asm.Program
		if prog, err = assembleFile(path); err == nil {
			img, err = image.FromDictionary(prog.Dict, prog.Entry)
		}
	}
	if err != nil {
		return err
	}
	hash, err := s.Put(ctx, *name, img)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "%s %s\n", hash, *name)
	return nil
}

func (c *cli) storeList(ctx context.Context, s *store.Store) error {
	entries, err := s.List(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "HASH\tNAME\tSIZE\tCREATED")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", e.Hash[:12], e.Name, e.Size, e.Created.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}
