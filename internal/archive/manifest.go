package archive

import (
	"path/filepath"
	"strconv"
	"strings"
)

const manifestName = "manifest.js"

type manifestFile struct {
	FileName   string `json:"fileName"`
	GlobalName string `json:"globalName"`
	Count      string `json:"count"`
}

type manifestDataType struct {
	MediaDirectory string         `json:"mediaDirectory"`
	Files          []manifestFile `json:"files"`
}

type manifestUser struct {
	AccountID   string `json:"accountId"`
	UserName    string `json:"userName"`
	DisplayName string `json:"displayName"`
}

type manifestArchive struct {
	SizeBytes      string `json:"sizeBytes"`
	GenerationDate string `json:"generationDate"`
}

// manifest mirrors the parts of window.__THAR_CONFIG the migration reads.
type manifest struct {
	UserInfo    manifestUser    `json:"userInfo"`
	ArchiveInfo manifestArchive `json:"archiveInfo"`
	DataTypes   struct {
		Tweets manifestDataType `json:"tweets"`
	} `json:"dataTypes"`
}

// Manifest is the decoded export manifest.
type Manifest struct {
	UserName       string
	DisplayName    string
	AccountID      string
	GeneratedAt    string
	MediaDirectory string // relative to the archive root
	Files          []ManifestFile
}

type ManifestFile struct {
	FileName   string // relative to the archive root, e.g. "data/tweets.js"
	GlobalName string // e.g. "YTD.tweets.part0"
	Count      int
}

func readManifest(root string) (*Manifest, error) {
	var raw manifest
	if _, err := readAssignment(filepath.Join(root, "data", manifestName), &raw); err != nil {
		return nil, err
	}

	m := &Manifest{
		UserName:       raw.UserInfo.UserName,
		DisplayName:    raw.UserInfo.DisplayName,
		AccountID:      raw.UserInfo.AccountID,
		GeneratedAt:    raw.ArchiveInfo.GenerationDate,
		MediaDirectory: raw.DataTypes.Tweets.MediaDirectory,
	}
	for _, f := range raw.DataTypes.Tweets.Files {
		count, _ := strconv.Atoi(strings.TrimSpace(f.Count))
		m.Files = append(m.Files, ManifestFile{
			FileName:   f.FileName,
			GlobalName: f.GlobalName,
			Count:      count,
		})
	}
	return m, nil
}
