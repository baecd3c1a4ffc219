// Package cache knows where gelee keeps its files on disk: the intermezzo
// relocator and payloads downloaded from the network.
package cache

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/adrg/xdg"
	"github.com/golang/glog"
)

const (
	appName       = "gelee"
	relocatorName = "intermezzo.bin"
	payloadsDir   = "payloads"
)

var ErrBadFilename = errors.New("invalid payload filename")

// RelocatorPath returns the first intermezzo relocator found in the XDG data
// directories (gelee/intermezzo.bin).
func RelocatorPath() (string, error) {
	p, err := xdg.SearchDataFile(path.Join(appName, relocatorName))
	if err != nil {
		return "", fmt.Errorf("could not find %s: %w", relocatorName, err)
	}
	glog.V(1).Infof("Using relocator at %s", p)
	return p, nil
}

// PayloadsDir is where downloaded payloads are stored.
func PayloadsDir() string {
	return filepath.Join(xdg.UserDirs.Download, payloadsDir)
}

// Payloads lists the files already present in PayloadsDir.
func Payloads() ([]string, error) {
	entries, err := os.ReadDir(PayloadsDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var res []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			res = append(res, e.Name())
		}
	}
	sort.Strings(res)
	return res, nil
}

// Download fetches url into PayloadsDir and returns the path of the saved
// file. If filename is empty, the last element of the URL path is used.
func Download(url, filename string) (string, error) {
	return download(http.DefaultClient, url, PayloadsDir(), filename)
}

func filenameFor(rawURL, filename string) (string, error) {
	if filename == "" {
		u, err := url.Parse(rawURL)
		if err != nil {
			return "", fmt.Errorf("invalid URL: %w", err)
		}
		filename = path.Base(u.Path)
	}
	switch filename {
	case "", ".", "..", "/":
		return "", fmt.Errorf("%w: %q", ErrBadFilename, filename)
	}
	if filepath.Base(filename) != filename {
		return "", fmt.Errorf("%w: %q", ErrBadFilename, filename)
	}
	return filename, nil
}

func download(client *http.Client, url, dir, filename string) (string, error) {
	filename, err := filenameFor(url, filename)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("could not create payloads directory: %w", err)
	}

	glog.Infof("Downloading %s from %s...", filename, url)
	resp, err := client.Get(url)
	if err != nil {
		return "", fmt.Errorf("could not download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("download failed with status: %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("could not read response: %w", err)
	}

	fspath := filepath.Join(dir, filename)
	if err := os.WriteFile(fspath, data, 0644); err != nil {
		return "", fmt.Errorf("could not save file: %w", err)
	}
	glog.Infof("Saved %d bytes to %s", len(data), fspath)
	return fspath, nil
}
