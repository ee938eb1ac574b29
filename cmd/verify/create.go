package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/verifier/pkg/verifier/algorithm"
	"github.com/jamesainslie/verifier/pkg/verifier/calculator"
	"github.com/jamesainslie/verifier/pkg/verifier/history"
	"github.com/jamesainslie/verifier/pkg/verifier/logging"
	"github.com/jamesainslie/verifier/pkg/verifier/manifest"
	"github.com/jamesainslie/verifier/pkg/verifier/scanner"
	"github.com/jamesainslie/verifier/pkg/verifier/types"
)

var (
	createFormat    string
	createAlgorithm string
	createExclude   []string
	createOut       string
	createName      string
	createComment   string
	createHidden    bool
	createFollow    bool
)

var createCmd = &cobra.Command{
	Use:   "create <dir>",
	Short: "Write a verification list for a directory",
	Long: `Hash every file under a directory and write a verification list.

The sfv format always uses CRC32 and the md5 formats always use MD5. The
verify format records sizes and timestamps and accepts any algorithm.

Examples:
  verify create ./dist                      # dist.verify with SHA-256
  verify create -f sfv ./release            # release.sfv
  verify create -a blake3 -x '*.tmp' ./data
  verify create -f md5sum --out SUMS ./pkg`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

func init() {
	f := createCmd.Flags()
	f.StringVarP(&createFormat, "format", "f", "verify", "list format (verify, sfv, md5, md5sum)")
	f.StringVarP(&createAlgorithm, "algorithm", "a", "", "algorithm for the verify format (default: SHA-256)")
	f.StringSliceVarP(&createExclude, "exclude", "x", nil, "glob patterns to exclude")
	f.StringVar(&createOut, "out", "", "list path (default: <dir>/<dir name><ext>)")
	f.StringVar(&createName, "name", "", "list name recorded in the verify format")
	f.StringVar(&createComment, "comment", "", "comment recorded in the verify format")
	f.BoolVar(&createHidden, "hidden", false, "include hidden files")
	f.BoolVar(&createFollow, "follow-symlinks", false, "follow symbolic links to directories")
	f.BoolVar(&noHistory, "no-history", false, "do not record this run")
	rootCmd.AddCommand(createCmd)
}

// createAlgorithmFor picks the digest algorithm for a list kind.
func createAlgorithmFor(k manifest.Kind, name string) (algorithm.ID, error) {
	switch k {
	case manifest.SimpleChecksum:
		return algorithm.CRC32Reversed, nil
	case manifest.KeyedMD5, manifest.BareMD5Sum:
		return algorithm.MD5, nil
	}
	if name == "" {
		return algorithm.SHA256, nil
	}
	id, err := algorithm.Parse(name)
	if err != nil {
		return 0, err
	}
	if !algorithm.Default.Supports(id) {
		return 0, fmt.Errorf("%w: %s", algorithm.ErrUnavailable, id)
	}
	return id, nil
}

// defaultListPath places the list inside dir, named after it.
func defaultListPath(dir string, k manifest.Kind) string {
	base := filepath.Base(dir)
	if base == "." || base == string(filepath.Separator) {
		base = "files"
	}
	return filepath.Join(dir, base+k.Extension())
}

func runCreate(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	kind, err := manifest.ParseKind(createFormat)
	if err != nil {
		return err
	}
	id, err := createAlgorithmFor(kind, createAlgorithm)
	if err != nil {
		return err
	}
	bufSize, err := cfg.BufferBytes()
	if err != nil {
		return err
	}

	out := createOut
	if out == "" {
		out = defaultListPath(root, kind)
	}
	if out, err = filepath.Abs(out); err != nil {
		return err
	}

	log := logging.Get("cli")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	res, err := scanner.New(scanner.Options{
		Root:           root,
		Exclude:        append(append([]string{}, cfg.Ignore...), createExclude...),
		Skip:           []string{out},
		Hidden:         createHidden,
		FollowSymlinks: createFollow,
	}).Scan(ctx)
	if err != nil {
		return err
	}
	for _, e := range res.Errors {
		printWarning("%s: %s", e.Path, e.Error)
	}
	if len(res.Files) == 0 {
		return fmt.Errorf("no files found in %s", root)
	}
	printVerbose("found %d files (%s)", len(res.Files), humanize.IBytes(uint64(res.Bytes)))

	m, err := buildManifest(ctx, res, kind, id, bufSize, filepath.Dir(out))
	if err != nil {
		return err
	}
	if err := manifest.Save(out, m, kind); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	log.Info("list created", "path", out, "entries", m.Len(), "algorithm", id)

	summary := types.Summary{Total: m.Len(), Processed: m.Len(), Good: m.Len(), BytesHashed: res.Bytes}
	recordCreate(out, kind, summary, started)

	printInfo("Wrote %s: %d files, %s, %s in %s", out, m.Len(), humanize.IBytes(uint64(res.Bytes)),
		id, time.Since(started).Round(time.Millisecond))
	return nil
}

// buildManifest hashes every scanned file. Names are relative to listDir.
func buildManifest(ctx context.Context, res *scanner.Result, k manifest.Kind, id algorithm.ID, bufSize int, listDir string) (*manifest.Manifest, error) {
	calc := calculator.New(algorithm.Default)
	if err := calc.SetBufferSize(bufSize); err != nil {
		return nil, err
	}
	if err := calc.Add(id); err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Second)
	m := &manifest.Manifest{
		Kind: k,
		Info: manifest.Metadata{
			Created:     &now,
			CreatedBy:   os.Getenv("USER"),
			Application: "verify " + version,
			ListName:    createName,
		},
	}
	if createComment != "" {
		m.Info.Comments = []manifest.Comment{{Text: createComment}}
	}

	for _, f := range res.Files {
		if err := computeFile(ctx, calc, f.Path); err != nil {
			return nil, fmt.Errorf("hashing %s: %w", f.Rel, err)
		}
		name, err := filepath.Rel(listDir, f.Path)
		if err != nil || strings.HasPrefix(name, "..") {
			name = f.Path
		}
		size := uint64(f.Size)
		mod := f.ModTime.UTC().Truncate(time.Second)
		e := &manifest.Entry{
			Name:      filepath.ToSlash(name),
			Algorithm: id,
			Digest:    calc.Hex(id),
		}
		if k == manifest.StructuredXML {
			e.Size = &size
			e.Modified = &mod
		}
		m.Entries = append(m.Entries, e)
	}
	return m, nil
}

func recordCreate(path string, k manifest.Kind, summary types.Summary, started time.Time) {
	if noHistory || !cfg.History.Enabled {
		return
	}
	hist, err := history.New(cfg.History.Path)
	if err != nil {
		printVerbose("history disabled: %v", err)
		return
	}
	err = hist.Save(&history.Run{
		Operation: history.OpCreate,
		Manifest:  path,
		Format:    k.String(),
		Started:   started,
		Finished:  time.Now(),
		Summary:   summary,
	})
	if err != nil {
		printVerbose("failed to save history: %v", err)
	}
}
