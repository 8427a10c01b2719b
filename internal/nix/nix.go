package nix

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/term"

	"github.com/Mic92/nix-review/internal/sandbox"
)

// BuildError is the soft per-change failure signal: a subprocess step
// of one change's review (fetching, merging, evaluating, or building)
// exited non-zero. The batch orchestrator converts exactly this error
// into a per-change outcome; everything else is fatal to the whole
// batch.
type BuildError struct {
	// Attrs are the package attributes the failed build requested.
	// Empty when the failure happened before the build step.
	Attrs []string

	// Err is the underlying command error.
	Err error
}

// Error satisfies the error interface.
func (e *BuildError) Error() string {
	if len(e.Attrs) == 0 {
		return fmt.Sprintf("review failed: %v", e.Err)
	}
	return fmt.Sprintf("building %s failed: %v", strings.Join(e.Attrs, " "), e.Err)
}

// Unwrap returns the underlying error.
func (e *BuildError) Unwrap() error {
	return e.Err
}

// xml structures for `nix-env --xml` output:
//
//	<items>
//	  <item attrPath="hello">
//	    <output name="out" path="/nix/store/...-hello-2.12" />
//	  </item>
//	</items>
type xmlItems struct {
	Items []xmlItem `xml:"item"`
}

type xmlItem struct {
	AttrPath string      `xml:"attrPath,attr"`
	Outputs  []xmlOutput `xml:"output"`
}

type xmlOutput struct {
	Name string `xml:"name,attr"`
	Path string `xml:"path,attr"`
}

// ListPackages evaluates the package set rooted at dir and returns a map
// from attribute path to the default output's store path. This is the
// raw material for the local evaluation diff: two listings, one per
// revision, compared by out-path.
func ListPackages(ctx context.Context, r sandbox.Runner, dir string) (map[string]string, error) {
	output, err := r.Run(ctx, dir, nil,
		"nix-env", "-f", dir, "-qaP", "--xml", "--out-path", "--show-trace")
	if err != nil {
		return nil, err
	}
	return parsePackageListing([]byte(output))
}

// parsePackageListing decodes nix-env XML output into an attr → out-path
// map. Items without any output are skipped; the "out" output is
// preferred when several exist.
func parsePackageListing(data []byte) (map[string]string, error) {
	var items xmlItems
	if err := xml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse nix-env output: %w", err)
	}

	packages := make(map[string]string, len(items.Items))
	for _, item := range items.Items {
		if item.AttrPath == "" || len(item.Outputs) == 0 {
			continue
		}
		path := item.Outputs[0].Path
		for _, out := range item.Outputs {
			if out.Name == "out" {
				path = out.Path
				break
			}
		}
		packages[item.AttrPath] = path
	}
	return packages, nil
}

// DiffPackages returns the attributes whose out-path changed between the
// base and changed listings, plus attributes new in changed. The result
// is sorted for stable build invocations and report output.
func DiffPackages(base, changed map[string]string) []string {
	var attrs []string
	for attr, path := range changed {
		if basePath, ok := base[attr]; !ok || basePath != path {
			attrs = append(attrs, attr)
		}
	}
	sort.Strings(attrs)
	return attrs
}

// Build builds the given package attributes from the tree at dir with
// `nix-build --no-out-link`. A non-zero exit is returned as *BuildError;
// the caller decides whether that is soft or fatal. Building an empty
// attribute list is a no-op.
func Build(ctx context.Context, r sandbox.Runner, dir string, attrs, buildArgs []string) error {
	if len(attrs) == 0 {
		return nil
	}

	args := []string{"--no-out-link", dir}
	for _, attr := range attrs {
		args = append(args, "-A", attr)
	}
	args = append(args, buildArgs...)

	if _, err := r.Run(ctx, dir, nil, "nix-build", args...); err != nil {
		return &BuildError{Attrs: attrs, Err: err}
	}
	return nil
}

// Shell drops the user into an interactive nix-shell preloaded with the
// given package attributes. extraEnv typically carries the NIX_PATH
// pointing at the change's worktree.
//
// When stdin is not a terminal (CI, piped input) the shell would sit on
// a closed stdin, so the built attributes are printed instead.
func Shell(ctx context.Context, r sandbox.Runner, attrs, extraEnv []string) error {
	if len(attrs) == 0 {
		fmt.Println("no packages were built, skipping shell")
		return nil
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Printf("built packages: %s\n", strings.Join(attrs, " "))
		return nil
	}

	args := append([]string{"-p"}, attrs...)
	return r.Interactive(ctx, "", extraEnv, "nix-shell", args...)
}
