package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/recast/coerce"
	"github.com/wippyai/recast/extract"
	"github.com/wippyai/recast/layout"
	"github.com/wippyai/recast/relation"
	"github.com/wippyai/recast/stable"
)

func main() {
	var (
		witFile     = flag.String("wit", "", "Path to a WIT JSON file (wasm-tools component wit --json)")
		pair        = flag.String("pair", "", "Check one ordered pair: source,target")
		matrix      = flag.Bool("matrix", false, "Print the full relation matrix")
		padOverlay  = flag.Bool("padding-overwrite", false, "Let any-bits targets overlay source padding")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Verbose derivation logging")
	)
	flag.Parse()

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		relation.SetLogger(logger)
		coerce.SetLogger(logger)
	}

	if *pair == "" && !*matrix && !*interactive {
		fmt.Fprintln(os.Stderr, "Usage: relcheck [-wit types.json] -pair <source>,<target>")
		fmt.Fprintln(os.Stderr, "       relcheck [-wit types.json] -matrix")
		fmt.Fprintln(os.Stderr, "       relcheck [-wit types.json] -i  (interactive mode)")
		os.Exit(1)
	}

	u, err := buildUniverse(*witFile, *padOverlay)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(u); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *pair != "" {
		if err := checkPair(u, *pair); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	if *matrix {
		printMatrix(u)
	}
}

// universe is the set of types a relcheck run reasons over: the fixed-width
// primitives plus every named type from the WIT file, when one is given.
type universe struct {
	reg    *stable.Registry
	engine *relation.Engine
	names  []string
}

func buildUniverse(witFile string, padOverlay bool) (*universe, error) {
	reg := stable.NewRegistry()
	u := &universe{
		reg: reg,
		engine: relation.NewEngine(reg,
			relation.WithPaddingOverwrite(padOverlay)),
	}

	prims := []struct {
		name string
		desc *layout.Descriptor
	}{
		{"bool", layout.Bool()},
		{"u8", layout.U8()},
		{"s8", layout.S8()},
		{"u16", layout.U16()},
		{"s16", layout.S16()},
		{"u32", layout.U32()},
		{"s32", layout.S32()},
		{"f32", layout.F32()},
		{"char", layout.Char()},
		{"u64", layout.U64()},
		{"s64", layout.S64()},
		{"f64", layout.F64()},
	}
	for _, p := range prims {
		if _, err := reg.Register(p.name, p.desc, stable.OptIn()); err != nil {
			return nil, err
		}
		u.names = append(u.names, p.name)
	}

	if witFile == "" {
		return u, nil
	}

	f, err := os.Open(witFile)
	if err != nil {
		return nil, fmt.Errorf("open wit: %w", err)
	}
	defer f.Close()
	resolve, err := wit.DecodeJSON(f)
	if err != nil {
		return nil, fmt.Errorf("decode wit: %w", err)
	}

	x := extract.NewWITExtractor()
	for _, td := range resolve.TypeDefs {
		if td.Name == nil {
			continue
		}
		name := *td.Name
		if _, taken := reg.ByName(name); taken {
			continue
		}
		d, err := x.Extract(td)
		if err != nil {
			// Resource handles and other layout-free types stay out of the
			// universe; everything else still participates.
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", name, err)
			continue
		}
		if _, err := reg.Register(name, d, stable.OptIn()); err != nil {
			return nil, err
		}
		u.names = append(u.names, name)
	}
	sort.Strings(u.names[12:]) // keep primitives first, WIT types sorted
	return u, nil
}

func checkPair(u *universe, pair string) error {
	parts := strings.SplitN(pair, ",", 2)
	if len(parts) != 2 {
		return fmt.Errorf("pair must be <source>,<target>, got %q", pair)
	}
	src, ok := u.reg.ByName(strings.TrimSpace(parts[0]))
	if !ok {
		return fmt.Errorf("unknown type %q", parts[0])
	}
	dst, ok := u.reg.ByName(strings.TrimSpace(parts[1]))
	if !ok {
		return fmt.Errorf("unknown type %q", parts[1])
	}

	fmt.Print(describePair(u, src, dst))
	return nil
}

func describePair(u *universe, src, dst stable.TypeID) string {
	var b strings.Builder
	sd, _ := u.reg.Descriptor(src)
	td, _ := u.reg.Descriptor(dst)
	fmt.Fprintf(&b, "%s -> %s\n", u.reg.Name(src), u.reg.Name(dst))
	fmt.Fprintf(&b, "  source: %s\n", describeDesc(sd))
	fmt.Fprintf(&b, "  target: %s\n", describeDesc(td))

	cert, err := u.engine.Relate(src, dst)
	if err != nil {
		fmt.Fprintf(&b, "  no relation: %v\n", err)
		return b.String()
	}

	switch {
	case !cert.FromBytes:
		b.WriteString("  byte-compatible:      no\n")
	case cert.Unconditional():
		b.WriteString("  byte-compatible:      yes\n")
	default:
		b.WriteString("  byte-compatible:      yes, after a runtime size check\n")
	}
	fmt.Fprintf(&b, "  alignment-compatible: %s\n", yesNo(cert.AlignedTo))
	fmt.Fprintf(&b, "  size regime:          %s\n", cert.Regime)
	if cert.Manual {
		b.WriteString("  certified manually\n")
	}
	return b.String()
}

func describeDesc(d *layout.Descriptor) string {
	if d == nil {
		return "?"
	}
	if d.Unsized() {
		return fmt.Sprintf("%s, unsized stride %d, align %d", d.Kind(), d.Size(), d.Align())
	}
	return fmt.Sprintf("%s, %d bytes, align %d", d.Kind(), d.Size(), d.Align())
}

// printMatrix prints one cell per ordered pair:
//
//	+  byte- and alignment-compatible, unconditional
//	s  byte-compatible after a size check, alignment ok
//	b  byte-compatible only
//	a  alignment-compatible only
//	.  no relation
func printMatrix(u *universe) {
	ids := make([]stable.TypeID, len(u.names))
	for i, n := range u.names {
		ids[i], _ = u.reg.ByName(n)
	}

	w := 0
	for _, n := range u.names {
		if len(n) > w {
			w = len(n)
		}
	}

	fmt.Printf("%*s ", w, "")
	for i := range u.names {
		fmt.Printf("%2d ", i)
	}
	fmt.Println()
	for i, src := range ids {
		fmt.Printf("%*s ", w, u.names[i])
		for _, dst := range ids {
			fmt.Printf(" %s ", cellFor(u, src, dst))
		}
		fmt.Printf(" %d\n", i)
	}
	fmt.Println("\n+ compatible  s size-checked  b bytes only  a alignment only  . none")
}

func cellFor(u *universe, src, dst stable.TypeID) string {
	cert, err := u.engine.Relate(src, dst)
	if err != nil {
		return "."
	}
	switch {
	case cert.FromBytes && cert.AlignedTo && cert.Unconditional():
		return "+"
	case cert.FromBytes && cert.AlignedTo:
		return "s"
	case cert.FromBytes:
		return "b"
	case cert.AlignedTo:
		return "a"
	}
	return "."
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
