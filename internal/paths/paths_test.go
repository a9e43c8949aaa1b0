package paths

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// mkHuddle creates root/.huddle and returns its path.
func mkHuddle(t *testing.T, root string) string {
	t.Helper()
	dir := filepath.Join(root, ".huddle")
	if err := os.MkdirAll(dir, 0750); err != nil {
		t.Fatalf("create %s: %v", dir, err)
	}
	return dir
}

func writeRedirect(t *testing.T, huddleDir, target string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(huddleDir, "redirect"), []byte(target), 0600); err != nil {
		t.Fatalf("write redirect: %v", err)
	}
}

func TestResolveHuddleDir(t *testing.T) {
	t.Run("no redirect", func(t *testing.T) {
		root := t.TempDir()
		local := mkHuddle(t, root)

		got, err := ResolveHuddleDir(root)
		if err != nil {
			t.Fatalf("ResolveHuddleDir: %v", err)
		}
		if got != local {
			t.Errorf("got %s, want %s", got, local)
		}
		if IsRedirected(root) {
			t.Error("IsRedirected = true without a redirect file")
		}
	})

	t.Run("redirect to shared dir", func(t *testing.T) {
		shared := mkHuddle(t, t.TempDir())
		checkout := t.TempDir()
		writeRedirect(t, mkHuddle(t, checkout), "  "+shared+"\n")

		got, err := ResolveHuddleDir(checkout)
		if err != nil {
			t.Fatalf("ResolveHuddleDir: %v", err)
		}
		if got != shared {
			t.Errorf("got %s, want %s", got, shared)
		}
		if !IsRedirected(checkout) {
			t.Error("IsRedirected = false with a redirect file")
		}
	})
}

func TestResolveHuddleDir_BadRedirect(t *testing.T) {
	afile := filepath.Join(t.TempDir(), "plain")
	if err := os.WriteFile(afile, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	hop := mkHuddle(t, t.TempDir())
	writeRedirect(t, hop, mkHuddle(t, t.TempDir()))

	tests := []struct {
		name    string
		target  func(local string) string
		wantErr string
	}{
		{"empty", func(string) string { return " \n" }, "empty"},
		{"relative", func(string) string { return "../shared/.huddle" }, "absolute"},
		{"missing", func(string) string { return "/nonexistent/huddle-test/.huddle" }, "does not exist"},
		{"file", func(string) string { return afile }, "not a directory"},
		{"chain", func(string) string { return hop }, "redirect chain"},
		{"self", func(local string) string { return local }, "redirect chain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			local := mkHuddle(t, root)
			writeRedirect(t, local, tt.target(local))

			_, err := ResolveHuddleDir(root)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestFindHuddleRoot(t *testing.T) {
	root := t.TempDir()
	mkHuddle(t, root)
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0750); err != nil {
		t.Fatal(err)
	}

	for _, start := range []string{root, nested} {
		got, err := FindHuddleRoot(start)
		if err != nil {
			t.Fatalf("FindHuddleRoot(%s): %v", start, err)
		}
		if got != root {
			t.Errorf("FindHuddleRoot(%s) = %s, want %s", start, got, root)
		}
	}
}

func TestFindHuddleRoot_NotFound(t *testing.T) {
	root := t.TempDir()
	// A plain file named .huddle does not count.
	if err := os.WriteFile(filepath.Join(root, ".huddle"), nil, 0600); err != nil {
		t.Fatal(err)
	}

	_, err := FindHuddleRoot(root)
	if err == nil {
		// Some ancestor of the temp dir has a real .huddle/; nothing to assert.
		t.Skip("an ancestor of the temp dir carries .huddle/")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestResolveFrom(t *testing.T) {
	t.Run("nested", func(t *testing.T) {
		root := t.TempDir()
		local := mkHuddle(t, root)
		nested := filepath.Join(root, "src", "pkg")
		if err := os.MkdirAll(nested, 0750); err != nil {
			t.Fatal(err)
		}

		got, err := ResolveFrom(nested)
		if err != nil {
			t.Fatalf("ResolveFrom: %v", err)
		}
		if got != local {
			t.Errorf("got %s, want %s", got, local)
		}
	})

	t.Run("none found", func(t *testing.T) {
		root := t.TempDir()
		if _, err := FindHuddleRoot(root); err == nil {
			t.Skip("an ancestor of the temp dir carries .huddle/")
		}

		got, err := ResolveFrom(root)
		if err != nil {
			t.Fatalf("ResolveFrom: %v", err)
		}
		if want := filepath.Join(root, ".huddle"); got != want {
			t.Errorf("got %s, want %s", got, want)
		}
		if _, err := os.Stat(got); !os.IsNotExist(err) {
			t.Error("ResolveFrom must not create the directory")
		}
	})
}

func TestRuntimePaths(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"var", VarDir("/repo/.huddle"), "/repo/.huddle/var"},
		{"var trailing slash", VarDir("/repo/.huddle/"), "/repo/.huddle/var"},
		{"var relative", VarDir(".huddle"), ".huddle/var"},
		{"prefs", PrefsDBPath("/repo/.huddle"), "/repo/.huddle/var/prefs.db"},
		{"socket", HostSocketPath("/repo/.huddle"), "/repo/.huddle/var/host.sock"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}
