package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalBackend stores files under a single root directory on the local
// filesystem.
type LocalBackend struct {
	Root string
}

// NewLocalBackend creates the root directory if needed.
func NewLocalBackend(root string) (*LocalBackend, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &LocalBackend{Root: abs}, nil
}

// resolve joins path onto the root and verifies the result stays inside it.
// Paths are pre-normalized by pathutil, so this is defense in depth.
func (b *LocalBackend) resolve(path string) (string, error) {
	full := filepath.Join(b.Root, filepath.FromSlash(path))
	if full != b.Root && !strings.HasPrefix(full, b.Root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: path escapes storage root", ErrNotFound)
	}
	return full, nil
}

func (b *LocalBackend) infoFrom(path string, fi os.FileInfo) FileInfo {
	name := filepath.Base(filepath.FromSlash(path))
	if path == "" {
		name = ""
	}
	info := FileInfo{
		Name:        name,
		Path:        path,
		IsDirectory: fi.IsDir(),
		ModifiedAt:  fi.ModTime(),
	}
	if !fi.IsDir() {
		info.Size = fi.Size()
		info.ContentType = ContentTypeFor(name)
	}
	return info
}

func (b *LocalBackend) Save(path string, content io.Reader) (FileInfo, error) {
	full, err := b.resolve(path)
	if err != nil {
		return FileInfo{}, err
	}

	if fi, err := os.Stat(full); err == nil && fi.IsDir() {
		return FileInfo{}, ErrIsDirectory
	}
	if _, err := os.Stat(filepath.Dir(full)); err != nil {
		return FileInfo{}, fmt.Errorf("%w: parent directory", ErrNotFound)
	}

	// Write to a temp file in the same directory, then rename, so a failed
	// write never leaves a truncated file at the target path.
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return FileInfo{}, err
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return FileInfo{}, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return FileInfo{}, err
	}
	if err := os.Rename(tmpName, full); err != nil {
		os.Remove(tmpName)
		return FileInfo{}, err
	}

	fi, err := os.Stat(full)
	if err != nil {
		return FileInfo{}, err
	}
	return b.infoFrom(path, fi), nil
}

func (b *LocalBackend) Open(path string) (io.ReadCloser, error) {
	full, err := b.resolve(path)
	if err != nil {
		return nil, err
	}

	fi, err := os.Stat(full)
	if err != nil {
		return nil, ErrNotFound
	}
	if fi.IsDir() {
		return nil, ErrIsDirectory
	}

	return os.Open(full)
}

func (b *LocalBackend) Delete(path string) error {
	full, err := b.resolve(path)
	if err != nil {
		return err
	}

	if _, err := os.Stat(full); err != nil {
		return ErrNotFound
	}

	return os.RemoveAll(full)
}

func (b *LocalBackend) Exists(path string) bool {
	full, err := b.resolve(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(full)
	return err == nil
}

func (b *LocalBackend) Info(path string) (FileInfo, error) {
	full, err := b.resolve(path)
	if err != nil {
		return FileInfo{}, err
	}

	fi, err := os.Stat(full)
	if err != nil {
		return FileInfo{}, ErrNotFound
	}

	return b.infoFrom(path, fi), nil
}

func (b *LocalBackend) List(path string) ([]FileInfo, error) {
	full, err := b.resolve(path)
	if err != nil {
		return nil, err
	}

	fi, err := os.Stat(full)
	if err != nil {
		return nil, ErrNotFound
	}
	if !fi.IsDir() {
		return nil, ErrNotDirectory
	}

	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, err
	}

	infos := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		efi, err := entry.Info()
		if err != nil {
			continue
		}
		childPath := entry.Name()
		if path != "" {
			childPath = path + "/" + entry.Name()
		}
		infos = append(infos, b.infoFrom(childPath, efi))
	}

	return infos, nil
}

func (b *LocalBackend) Mkdir(path string) (FileInfo, error) {
	full, err := b.resolve(path)
	if err != nil {
		return FileInfo{}, err
	}

	if fi, err := os.Stat(full); err == nil {
		if fi.IsDir() {
			return FileInfo{}, ErrAlreadyExists
		}
		return FileInfo{}, ErrNotDirectory
	}

	if err := os.MkdirAll(full, 0o755); err != nil {
		return FileInfo{}, err
	}

	fi, err := os.Stat(full)
	if err != nil {
		return FileInfo{}, err
	}
	return b.infoFrom(path, fi), nil
}

func (b *LocalBackend) Move(src, dstDir string) (FileInfo, error) {
	srcFull, err := b.resolve(src)
	if err != nil {
		return FileInfo{}, err
	}
	dstDirFull, err := b.resolve(dstDir)
	if err != nil {
		return FileInfo{}, err
	}

	if _, err := os.Stat(srcFull); err != nil {
		return FileInfo{}, ErrNotFound
	}
	if fi, err := os.Stat(dstDirFull); err != nil || !fi.IsDir() {
		return FileInfo{}, fmt.Errorf("%w: destination directory", ErrNotFound)
	}

	name := filepath.Base(srcFull)
	target := filepath.Join(dstDirFull, name)
	if _, err := os.Stat(target); err == nil {
		return FileInfo{}, ErrAlreadyExists
	}

	if err := os.Rename(srcFull, target); err != nil {
		return FileInfo{}, err
	}

	newPath := name
	if dstDir != "" {
		newPath = dstDir + "/" + name
	}
	fi, err := os.Stat(target)
	if err != nil {
		return FileInfo{}, err
	}
	return b.infoFrom(newPath, fi), nil
}

func (b *LocalBackend) Copy(src, dstDir string) (FileInfo, error) {
	srcFull, err := b.resolve(src)
	if err != nil {
		return FileInfo{}, err
	}
	dstDirFull, err := b.resolve(dstDir)
	if err != nil {
		return FileInfo{}, err
	}

	srcInfo, err := os.Stat(srcFull)
	if err != nil {
		return FileInfo{}, ErrNotFound
	}
	if fi, err := os.Stat(dstDirFull); err != nil || !fi.IsDir() {
		return FileInfo{}, fmt.Errorf("%w: destination directory", ErrNotFound)
	}

	// Pick a free name: "x.txt", then "x (copy).txt", "x (copy 2).txt", ...
	name := filepath.Base(srcFull)
	target := filepath.Join(dstDirFull, name)
	for i := 1; ; i++ {
		if _, err := os.Stat(target); os.IsNotExist(err) {
			break
		}
		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		suffix := " (copy)"
		if i > 1 {
			suffix = fmt.Sprintf(" (copy %d)", i)
		}
		target = filepath.Join(dstDirFull, stem+suffix+ext)
	}

	if srcInfo.IsDir() {
		if err := copyTree(srcFull, target); err != nil {
			return FileInfo{}, err
		}
	} else {
		if err := copyFile(srcFull, target); err != nil {
			return FileInfo{}, err
		}
	}

	newName := filepath.Base(target)
	newPath := newName
	if dstDir != "" {
		newPath = dstDir + "/" + newName
	}
	fi, err := os.Stat(target)
	if err != nil {
		return FileInfo{}, err
	}
	return b.infoFrom(newPath, fi), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

func copyTree(src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		s := filepath.Join(src, entry.Name())
		d := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := copyTree(s, d); err != nil {
				return err
			}
		} else {
			if err := copyFile(s, d); err != nil {
				return err
			}
		}
	}

	return nil
}
