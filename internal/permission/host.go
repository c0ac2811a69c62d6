package permission

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
)

// runFunc executes a command and returns its combined output.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// HostPlatform is the Platform of the running process. On Android it uses the
// getprop, dumpsys and pm shell tools against the given package.
type HostPlatform struct {
	goos string
	pkg  string
	run  runFunc
}

// Host returns the Platform for this process. pkg is the Android package
// whose grants are checked.
func Host(pkg string) *HostPlatform {
	return &HostPlatform{goos: runtime.GOOS, pkg: pkg, run: execRun}
}

var _ Platform = (*HostPlatform)(nil)

func (h *HostPlatform) OS() string { return h.goos }

// Version returns the Android SDK level, or 0 elsewhere.
func (h *HostPlatform) Version() (int, error) {
	if h.goos != MobileOS {
		return 0, nil
	}
	out, err := h.run(context.Background(), "getprop", "ro.build.version.sdk")
	if err != nil {
		return 0, fmt.Errorf("permission: getprop: %w", err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0, fmt.Errorf("permission: parse sdk level %q: %w", strings.TrimSpace(string(out)), err)
	}
	return v, nil
}

func (h *HostPlatform) Check(ctx context.Context, p Permission) (bool, error) {
	grants, err := h.grants(ctx)
	if err != nil {
		return false, err
	}
	return grants[p], nil
}

// RequestMultiple grants each permission with pm and re-reads the grant table.
// A permission pm refuses comes back Denied.
func (h *HostPlatform) RequestMultiple(ctx context.Context, perms []Permission) (map[Permission]Result, error) {
	for _, p := range perms {
		// Refusals show up in the grant table below.
		if out, err := h.run(ctx, "pm", "grant", h.pkg, string(p)); err != nil {
			slog.Debug("[PERM] pm grant refused", "permission", p, "error", err,
				"output", strings.TrimSpace(string(out)))
		}
	}

	grants, err := h.grants(ctx)
	if err != nil {
		return nil, err
	}
	results := make(map[Permission]Result, len(perms))
	for _, p := range perms {
		if grants[p] {
			results[p] = Granted
		} else {
			results[p] = Denied
		}
	}
	return results, nil
}

func (h *HostPlatform) grants(ctx context.Context) (map[Permission]bool, error) {
	out, err := h.run(ctx, "dumpsys", "package", h.pkg)
	if err != nil {
		return nil, fmt.Errorf("permission: dumpsys package %s: %w", h.pkg, err)
	}
	return parseGrants(out), nil
}

// parseGrants reads "android.permission.X: granted=true" lines from dumpsys
// output. A permission listed more than once is granted if any line says so.
func parseGrants(out []byte) map[Permission]bool {
	grants := make(map[Permission]bool)
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		name, rest, ok := strings.Cut(line, ":")
		if !ok || !strings.HasPrefix(name, "android.permission.") {
			continue
		}
		granted := strings.Contains(rest, "granted=true")
		p := Permission(name)
		grants[p] = grants[p] || granted
	}
	return grants
}
