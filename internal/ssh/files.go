package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/pkg/sftp"
)

// BackupSuffix is appended to a file's path to name the copy WriteFile
// keeps of its previous contents.
const BackupSuffix = ".bak"

// RemoteFiles reads and writes files on a node over SFTP.
type RemoteFiles struct {
	client *Client
	sftp   *sftp.Client
}

func newRemoteFiles(client *Client) (*RemoteFiles, error) {
	sc, err := sftp.NewClient(client.SSHClient())
	if err != nil {
		return nil, fmt.Errorf("sftp client: %w", err)
	}
	return &RemoteFiles{client: client, sftp: sc}, nil
}

// ReadFile returns the contents of the remote file at name.
func (f *RemoteFiles) ReadFile(ctx context.Context, name string) ([]byte, error) {
	remote, err := f.sftp.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer remote.Close()

	var buf bytes.Buffer
	if _, err := copyWithContext(ctx, &buf, remote); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// WriteFile replaces the remote file at name with data. An existing file
// is first copied to name+BackupSuffix. Missing parent directories are
// created.
func (f *RemoteFiles) WriteFile(ctx context.Context, name string, data []byte) error {
	previous, err := f.ReadFile(ctx, name)
	switch {
	case err == nil:
		if err := f.put(ctx, name+BackupSuffix, previous); err != nil {
			return fmt.Errorf("backup %s: %w", name, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return err
	}

	// path, not filepath: remote paths are always Unix paths.
	if dir := path.Dir(name); dir != "." && dir != "/" {
		if err := f.sftp.MkdirAll(dir); err != nil {
			return fmt.Errorf("create remote dir %s: %w", dir, err)
		}
	}
	return f.put(ctx, name, data)
}

func (f *RemoteFiles) put(ctx context.Context, name string, data []byte) error {
	remote, err := f.sftp.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	_, err = copyWithContext(ctx, remote, bytes.NewReader(data))
	if cerr := remote.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Close ends the SFTP session and the connection under it.
func (f *RemoteFiles) Close() error {
	f.sftp.Close()
	return f.client.Close()
}

// copyWithContext copies src to dst in chunks, stopping early when ctx
// is done.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		nr, readErr := src.Read(buf)
		if nr > 0 {
			nw, writeErr := dst.Write(buf[:nr])
			written += int64(nw)
			if writeErr != nil {
				return written, writeErr
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}
