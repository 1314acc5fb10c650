package folder

import (
	"strings"

	"github.com/BurntSushi/toml"
)

// frontMatterDelim marks the start and end of a `_folder.md`'s TOML header.
const frontMatterDelim = "+++"

// FrontMatter is the TOML header a `_folder.md` may carry before its
// Markdown body.
type FrontMatter struct {
	Hidden bool   `toml:"hidden"`
	Title  string `toml:"title"`
}

// ParseFolderMD splits a `_folder.md` file's contents into its optional
// `+++`-delimited TOML front matter and its Markdown body. A file with no
// front matter block returns a zero FrontMatter and the full content as the
// body.
func ParseFolderMD(content string) (FrontMatter, string) {
	var fm FrontMatter

	trimmed := strings.TrimLeft(content, "\r\n")
	if !strings.HasPrefix(trimmed, frontMatterDelim) {
		return fm, content
	}

	rest := trimmed[len(frontMatterDelim):]
	rest = strings.TrimPrefix(rest, "\n")
	rest = strings.TrimPrefix(rest, "\r\n")

	end := strings.Index(rest, "\n"+frontMatterDelim)
	if end < 0 {
		return fm, content
	}

	tomlBlock := rest[:end]
	body := rest[end+1+len(frontMatterDelim):]
	body = strings.TrimPrefix(body, "\r\n")
	body = strings.TrimPrefix(body, "\n")

	if _, err := toml.Decode(tomlBlock, &fm); err != nil {
		return FrontMatter{}, content
	}
	return fm, body
}
