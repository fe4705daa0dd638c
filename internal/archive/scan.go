package archive

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// TweetFile is a tweet data file found on disk.
type TweetFile struct {
	Path  string // relative to the archive root, slash separated
	Size  int64
	Mtime int64
}

// ScanTweetFiles walks root/data for tweets*.js files. Media directories
// are not descended into.
func ScanTweetFiles(root string) ([]TweetFile, error) {
	dataDir := filepath.Join(root, "data")
	var files []TweetFile
	err := filepath.Walk(dataDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable dirs
		}
		if info.IsDir() {
			if strings.HasSuffix(info.Name(), "_media") {
				return filepath.SkipDir
			}
			return nil
		}
		name := info.Name()
		if filepath.Ext(name) != ".js" || !strings.HasPrefix(name, "tweets") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		files = append(files, TweetFile{
			Path:  filepath.ToSlash(rel),
			Size:  info.Size(),
			Mtime: info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Unlisted returns tweet files on disk that the manifest does not name.
// Their records are never migrated.
func (a *Archive) Unlisted() ([]TweetFile, error) {
	files, err := ScanTweetFiles(a.root)
	if err != nil {
		return nil, err
	}
	listed := make(map[string]bool, len(a.manifest.Files))
	for _, f := range a.manifest.Files {
		listed[f.FileName] = true
	}
	var out []TweetFile
	for _, f := range files {
		if !listed[f.Path] {
			out = append(out, f)
		}
	}
	return out, nil
}
