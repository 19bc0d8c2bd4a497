// Package main implements the genconfig tool that writes config.default.toml
// from config.ExampleConfig() and config.ConfigDocs.
//
// It is invoked by go generate via the directive in internal/config/config.go.
// With -check it exits non-zero when the file on disk is stale instead of
// rewriting it.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"tools.zach/dev/sabercord/internal/config"
)

// go generate runs from internal/config/, the embed lives at the repo root.
const defaultOutPath = "../../config.default.toml"

func main() {
	outPath := flag.String("o", defaultOutPath, "output `path`")
	check := flag.Bool("check", false, "fail if the output file is out of date")
	flag.Parse()

	rendered, err := render(config.ExampleConfig(), config.ConfigDocs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "genconfig: %v\n", err)
		os.Exit(1)
	}

	if *check {
		current, err := os.ReadFile(*outPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "genconfig: %v\n", err)
			os.Exit(1)
		}
		if !bytes.Equal(current, rendered) {
			fmt.Fprintf(os.Stderr, "genconfig: %s is stale, run go generate ./internal/config\n", *outPath)
			os.Exit(1)
		}
		return
	}

	if err := os.WriteFile(*outPath, rendered, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "genconfig: write %s: %v\n", *outPath, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s\n", *outPath)
}

// render encodes cfg as TOML and decorates it with comments from docs.
func render(cfg *config.Config, docs map[string]config.FieldDoc) ([]byte, error) {
	var raw bytes.Buffer
	if err := toml.NewEncoder(&raw).Encode(cfg); err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	out := []string{
		"# ///////////////////////////////////////////////",
		"# Sabercord Configuration",
		"# ///////////////////////////////////////////////",
		"",
	}

	var sectionStack []string
	emitted := map[string]bool{}

	for _, line := range strings.Split(raw.String(), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, "[") && !strings.HasPrefix(trimmed, "[[") {
			injectOmitted(&out, docs, sectionStack, emitted)

			section := strings.Trim(trimmed, "[] ")
			sectionStack = parseSectionPath(section)

			out = append(out, "", fmt.Sprintf("# ///// %s /////", sectionName(section)), "")
			if doc, ok := docs[section]; ok {
				out = appendComment(out, doc.Comment)
			}
			out = append(out, trimmed)
			continue
		}

		if !strings.Contains(trimmed, "=") || strings.HasPrefix(trimmed, "#") {
			out = append(out, trimmed)
			continue
		}

		key := strings.TrimSpace(strings.SplitN(trimmed, "=", 2)[0])
		fullPath := key
		if len(sectionStack) > 0 {
			fullPath = strings.Join(sectionStack, ".") + "." + key
		}
		emitted[fullPath] = true

		doc, ok := docs[fullPath]
		if !ok {
			out = append(out, trimmed)
			continue
		}
		out = appendComment(out, doc.Comment)
		out = append(out, trimmed)
		for _, alt := range doc.Alternatives {
			out = append(out, "# "+alt)
		}
	}
	injectOmitted(&out, docs, sectionStack, emitted)

	result := strings.TrimRight(strings.Join(out, "\n"), "\n") + "\n"
	return []byte(result), nil
}

func appendComment(out []string, comment string) []string {
	if comment == "" {
		return out
	}
	for _, cl := range strings.Split(comment, "\n") {
		out = append(out, "# "+cl)
	}
	return out
}

// injectOmitted appends commented-out entries for documented keys of the
// current section that the encoder skipped, usually omitempty fields holding
// their zero value. Keys are sorted so output is stable.
func injectOmitted(out *[]string, docs map[string]config.FieldDoc, sectionStack []string, emitted map[string]bool) {
	if len(sectionStack) == 0 {
		return
	}
	prefix := strings.Join(sectionStack, ".") + "."

	var omitted []string
	for path := range docs {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok || strings.Contains(rest, ".") || emitted[path] {
			continue
		}
		omitted = append(omitted, path)
	}
	sort.Strings(omitted)

	for _, path := range omitted {
		doc := docs[path]
		*out = append(*out, "")
		*out = appendComment(*out, doc.Comment)
		for _, alt := range doc.Alternatives {
			*out = append(*out, "# "+alt)
		}
		emitted[path] = true
	}
}

// parseSectionPath splits a dotted section header into path segments.
func parseSectionPath(section string) []string {
	return strings.Split(section, ".")
}

// sectionName capitalizes the last segment of a section header:
// "update" yields "Update".
func sectionName(section string) string {
	parts := strings.Split(section, ".")
	last := parts[len(parts)-1]
	if len(last) == 0 {
		return ""
	}
	return strings.ToUpper(last[:1]) + last[1:]
}
