// Package paths centralizes file and directory names used across the project.
// Data directory, Claude directory, and cache file names are defined here as
// the single source of truth.
package paths

import (
	"os"
	"path/filepath"
)

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

// Data directory file names.
const (
	ConfigFile = "config.toml"
	LogFile    = "ccblock.log"
	DataDirRel = ".ccblock" // relative to $HOME
	BinaryName = "ccblock"
)

// Block cache location, relative to the per-user cache directory.
const (
	CacheDirName   = "ccblock"
	BlockCacheFile = "block-cache.json"
)

// Claude Code layout.
const (
	ClaudeDirRel     = ".claude" // relative to $HOME
	ClaudeConfigEnv  = "CLAUDE_CONFIG_DIR"
	ProjectsDir      = "projects"
	ConversationGlob = ProjectsDir + "/**/*.jsonl"
)

// ///////////////////////////////////////////////
// DataDir
// ///////////////////////////////////////////////

// DataDir provides path construction methods rooted at a data directory.
type DataDir struct {
	Root string
}

// Config returns the full path to the config file.
func (d DataDir) Config() string { return filepath.Join(d.Root, ConfigFile) }

// Log returns the full path to the log file.
func (d DataDir) Log() string { return filepath.Join(d.Root, LogFile) }

// ///////////////////////////////////////////////
// Defaults
// ///////////////////////////////////////////////

// DefaultDataDir returns ~/.ccblock, or ./.ccblock when the home directory
// cannot be determined.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", DataDirRel)
	}
	return filepath.Join(home, DataDirRel)
}

// DefaultClaudeDir resolves the Claude Code config directory: $CLAUDE_CONFIG_DIR
// when set, otherwise ~/.claude. Returns "" if neither can be determined.
func DefaultClaudeDir() string {
	if dir := os.Getenv(ClaudeConfigEnv); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ClaudeDirRel)
}

// DefaultBlockCache returns <user cache dir>/ccblock/block-cache.json, falling
// back to the data directory when no per-user cache directory is available.
func DefaultBlockCache() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(DefaultDataDir(), BlockCacheFile)
	}
	return filepath.Join(dir, CacheDirName, BlockCacheFile)
}
