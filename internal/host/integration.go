package host

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:embed scripts/bash.sh scripts/zsh.sh scripts/fish/vendor_conf.d/cookterm.fish
var scripts embed.FS

// TermProgram is exported to the shell as TERM_PROGRAM so integration
// scripts can tell they run inside cookterm.
const TermProgram = "cookterm"

// ErrUnsupportedShell is returned for shells without an integration script.
var ErrUnsupportedShell = errors.New("unsupported shell")

var scriptPaths = map[string]string{
	"bash": "scripts/bash.sh",
	"zsh":  "scripts/zsh.sh",
	"fish": "scripts/fish/vendor_conf.d/cookterm.fish",
}

// Shells lists the shells with integration scripts.
func Shells() []string { return []string{"bash", "zsh", "fish"} }

// ShellKind maps a shell path to "bash", "zsh", "fish" or "".
func ShellKind(path string) string {
	base := filepath.Base(path)
	for _, k := range Shells() {
		if strings.Contains(base, k) {
			return k
		}
	}
	return ""
}

// Script returns the integration script for shell ("bash", "zsh", "fish").
func Script(shell string) (string, error) {
	p, ok := scriptPaths[strings.ToLower(strings.TrimSpace(shell))]
	if !ok {
		return "", fmt.Errorf("%w: %s (supported: %s)", ErrUnsupportedShell, shell, strings.Join(Shells(), ", "))
	}
	b, err := scripts.ReadFile(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Launch is a prepared shell invocation.
type Launch struct {
	Path string
	Args []string
	Env  []string
	// Integrated is false when the shell has no integration script.
	Integrated bool
	// Cleanup removes any temporary rc files.
	Cleanup func()
}

// Prepare builds the command line and environment that start shell with
// integration loaded. Bash gets a --rcfile loader, zsh a temporary ZDOTDIR
// and fish an XDG_DATA_DIRS entry holding vendor_conf.d. Other shells start
// unchanged.
func Prepare(shell string, env []string) (Launch, error) {
	l := Launch{Path: shell, Cleanup: func() {}}
	env = setEnv(env, "TERM", "xterm-256color")
	env = setEnv(env, "TERM_PROGRAM", TermProgram)

	kind := ShellKind(shell)
	if kind == "" {
		l.Env = env
		return l, nil
	}

	dir, err := os.MkdirTemp("", "cookterm-"+kind+"-")
	if err != nil {
		return Launch{}, fmt.Errorf("host: integration dir: %w", err)
	}
	l.Cleanup = func() { _ = os.RemoveAll(dir) }

	fail := func(err error) (Launch, error) {
		l.Cleanup()
		return Launch{}, fmt.Errorf("host: prepare %s: %w", kind, err)
	}

	script, err := Script(kind)
	if err != nil {
		return fail(err)
	}

	switch kind {
	case "bash":
		scriptPath := filepath.Join(dir, "cookterm.bash")
		rcPath := filepath.Join(dir, "bashrc")
		rc := "# cookterm bash loader\n" +
			"if [[ -f \"$HOME/.bashrc\" ]]; then\n" +
			"    source \"$HOME/.bashrc\"\n" +
			"fi\n" +
			"if [[ \"$TERM_PROGRAM\" == \"" + TermProgram + "\" && -n \"$COOKTERM_SHELL_INTEGRATION_SCRIPT\" ]]; then\n" +
			"    source \"$COOKTERM_SHELL_INTEGRATION_SCRIPT\"\n" +
			"fi\n"
		if err := os.WriteFile(scriptPath, []byte(script), 0o644); err != nil {
			return fail(err)
		}
		if err := os.WriteFile(rcPath, []byte(rc), 0o644); err != nil {
			return fail(err)
		}
		env = setEnv(env, "COOKTERM_SHELL_INTEGRATION_SCRIPT", scriptPath)
		l.Args = []string{"--rcfile", rcPath}

	case "zsh":
		userDir := lookupEnv(env, "ZDOTDIR")
		if userDir == "" {
			userDir = lookupEnv(env, "HOME")
		}
		if userDir == "" {
			userDir = "/"
		}
		scriptPath := filepath.Join(dir, "cookterm.zsh")
		rc := "# cookterm zsh loader\n" +
			"USER_ZDOTDIR=" + shellQuote(userDir) + "\n" +
			"ZDOTDIR=" + shellQuote(dir) + "\n" +
			"if [[ -f \"$USER_ZDOTDIR/.zshrc\" ]]; then\n" +
			"    source \"$USER_ZDOTDIR/.zshrc\"\n" +
			"fi\n" +
			"if [[ -f " + shellQuote(scriptPath) + " ]]; then\n" +
			"    source " + shellQuote(scriptPath) + "\n" +
			"fi\n"
		if err := os.WriteFile(scriptPath, []byte(script), 0o644); err != nil {
			return fail(err)
		}
		if err := os.WriteFile(filepath.Join(dir, ".zshrc"), []byte(rc), 0o644); err != nil {
			return fail(err)
		}
		env = setEnv(env, "ZDOTDIR", dir)
		env = setEnv(env, "USER_ZDOTDIR", userDir)

	case "fish":
		confDir := filepath.Join(dir, "fish", "vendor_conf.d")
		if err := os.MkdirAll(confDir, 0o755); err != nil {
			return fail(err)
		}
		if err := os.WriteFile(filepath.Join(confDir, "cookterm.fish"), []byte(script), 0o644); err != nil {
			return fail(err)
		}
		existing := lookupEnv(env, "XDG_DATA_DIRS")
		if existing == "" {
			existing = "/usr/local/share:/usr/share"
		}
		env = setEnv(env, "XDG_DATA_DIRS", dir+":"+existing)
	}

	l.Env = env
	l.Integrated = true
	return l, nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func lookupEnv(env []string, key string) string {
	prefix := key + "="
	for i := len(env) - 1; i >= 0; i-- {
		if strings.HasPrefix(env[i], prefix) {
			return env[i][len(prefix):]
		}
	}
	return ""
}

// setEnv returns env with key set to val, replacing earlier values.
func setEnv(env []string, key, val string) []string {
	prefix := key + "="
	out := make([]string, 0, len(env)+1)
	for _, kv := range env {
		if !strings.HasPrefix(kv, prefix) {
			out = append(out, kv)
		}
	}
	return append(out, prefix+val)
}
