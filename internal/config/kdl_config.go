package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// LoadResult is what a KDL load run produces: the merged Config plus the
// three diagnostic classes callers must surface (duplicates, unknowns,
// deprecated keys) rather than silently ignoring them.
type LoadResult struct {
	Config     *Config
	Duplicates []string
	Unknown    []string
	Deprecated []string
}

// deprecatedKeys maps a retired key name to the key that replaced it. Empty
// today; kept so a future rename has somewhere to register without
// breaking existing .rls.kdl files silently.
var deprecatedKeys = map[string]string{}

// LoadKDL loads <projectRoot>/.rls.kdl if present, overlaying it onto
// Default(). Returns (nil, nil) if no file exists -- callers then use
// Default() as-is, the same "no KDL config found, use defaults" path
// lci's own loader takes.
func LoadKDL(projectRoot string) (*LoadResult, error) {
	path := filepath.Join(projectRoot, ".rls.kdl")
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read .rls.kdl: %w", err)
	}
	return parseKDL(string(content))
}

func parseKDL(content string) (*LoadResult, error) {
	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	cfg := Default()
	res := &LoadResult{Config: cfg}
	seen := map[string]bool{}

	record := func(key string) bool {
		if real, ok := deprecatedKeys[key]; ok {
			res.Deprecated = append(res.Deprecated, fmt.Sprintf("%s (use %s)", key, real))
		}
		if seen[key] {
			res.Duplicates = append(res.Duplicates, key)
			return false
		}
		seen[key] = true
		return true
	}

	for _, n := range doc.Nodes {
		key := nodeName(n)
		if !record(key) {
			continue
		}
		switch key {
		case "sysroot":
			assignString(n, &cfg.Sysroot)
		case "target":
			assignString(n, &cfg.Target)
		case "rustflags":
			assignString(n, &cfg.Rustflags)
		case "build_lib":
			assignBool(n, &cfg.BuildLib)
		case "build_bin":
			assignString(n, &cfg.BuildBin)
		case "cfg_test":
			assignBool(n, &cfg.CfgTest)
		case "unstable_features":
			assignBool(n, &cfg.UnstableFeatures)
		case "wait_to_build":
			assignInt(n, &cfg.WaitToBuildMs)
		case "show_warnings":
			assignBool(n, &cfg.ShowWarnings)
		case "clear_env_rust_log":
			assignBool(n, &cfg.ClearEnvRustLog)
		case "build_on_save":
			assignBool(n, &cfg.BuildOnSave)
		case "crate_blacklist":
			cfg.CrateBlacklist = collectStringArgs(n)
		case "target_dir":
			assignString(n, &cfg.TargetDir)
		case "features":
			cfg.Features = collectStringArgs(n)
		case "all_features":
			assignBool(n, &cfg.AllFeatures)
		case "no_default_features":
			assignBool(n, &cfg.NoDefaultFeatures)
		case "jobs":
			assignInt(n, &cfg.Jobs)
		case "all_targets":
			assignBool(n, &cfg.AllTargets)
		case "racer_completion":
			assignBool(n, &cfg.RacerCompletion)
		case "clippy_preference":
			if s, ok := firstStringArg(n); ok {
				cfg.ClippyPreference = ClippyPreference(s)
			}
		case "full_docs":
			assignBool(n, &cfg.FullDocs)
		case "show_hover_context":
			assignBool(n, &cfg.ShowHoverContext)
		case "rustfmt_path":
			assignString(n, &cfg.RustfmtPath)
		case "build_command":
			cfg.BuildCommand = strings.Join(collectStringArgs(n), " ")
		default:
			res.Unknown = append(res.Unknown, key)
		}
	}

	return res, nil
}

func assignString(n *document.Node, target *string) {
	if s, ok := firstStringArg(n); ok {
		*target = s
	}
}

func assignBool(n *document.Node, target *bool) {
	if b, ok := firstBoolArg(n); ok {
		*target = b
	}
}

func assignInt(n *document.Node, target *int) {
	if v, ok := firstIntArg(n); ok {
		*target = v
	}
}

// nodeName, firstIntArg, firstStringArg, firstBoolArg and collectStringArgs
// below are adapted near-verbatim from lci's kdl_config.go: thin wrappers
// over kdl-go's document.Node argument model that have no domain-specific
// behavior to generalize.

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}
