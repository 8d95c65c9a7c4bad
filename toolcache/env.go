package toolcache

import (
	"os"
	"strings"
)

// EnvFunc returns the user's environment. Hosts that run with a different
// environment than the user's login shell provide their own.
type EnvFunc func() (map[string]string, error)

// OSEnv returns the environment of the current process.
func OSEnv() (map[string]string, error) {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env, nil
}

// StaticEnv returns an EnvFunc that always yields env.
func StaticEnv(env map[string]string) EnvFunc {
	return func() (map[string]string, error) {
		return env, nil
	}
}

// UserPath returns the PATH directories from env. It returns ErrNoPath (or
// the lookup error) when PATH is unavailable, logging that only once.
func (c *CacheManager) UserPath(env EnvFunc) ([]string, error) {
	if env == nil {
		env = OSEnv
	}
	vars, err := env()
	if err == nil {
		windows := c.goos == "windows"
		if path, ok := lookupPath(vars, windows); ok && path != "" {
			return splitPathList(path, windows), nil
		}
		err = ErrNoPath
	}

	if c.complainer.Complain("can't get user path") {
		log.Debugf("User environment lookup failed: %v", err)
	}
	return nil, err
}

// splitPathList splits a PATH value with the separator of the target
// platform rather than the host's.
func splitPathList(path string, windows bool) []string {
	if !windows {
		return strings.Split(path, ":")
	}
	var dirs []string
	for _, dir := range strings.Split(path, ";") {
		// Windows allows quoted entries
		dirs = append(dirs, strings.ReplaceAll(dir, `"`, ""))
	}
	return dirs
}

// lookupPath finds PATH, ignoring case on Windows where it is usually "Path".
func lookupPath(vars map[string]string, windows bool) (string, bool) {
	if path, ok := vars["PATH"]; ok {
		return path, true
	}
	if !windows {
		return "", false
	}
	for k, v := range vars {
		if strings.EqualFold(k, "PATH") {
			return v, true
		}
	}
	return "", false
}
