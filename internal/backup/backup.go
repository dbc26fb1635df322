// Package backup snapshots the SQLite database to S3-compatible storage and
// restores snapshots from it.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrNotConfigured is returned when no bucket or credentials are set.
var ErrNotConfigured = errors.New("backup not configured: S3 bucket and credentials required")

const (
	snapshotExt  = ".db"
	encryptedExt = ".db.enc"
	keyTimestamp = "20060102T150405Z"
)

var sqliteHeader = []byte("SQLite format 3\x00")

// s3Client is the subset of the S3 API backups use.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	// Prefix is prepended to every object key.
	Prefix string
	// Passphrase, when set, encrypts snapshots before upload.
	Passphrase string
	// Keep is how many snapshots Prune retains.
	Keep int
}

type Manager struct {
	cfg    Config
	db     *sql.DB
	client s3Client
	now    func() time.Time
	logger *slog.Logger
}

func NewManager(cfg Config, db *sql.DB, logger *slog.Logger) (*Manager, error) {
	if cfg.Bucket == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, ErrNotConfigured
	}
	return newManager(cfg, db, newS3Client(cfg), logger), nil
}

func newManager(cfg Config, db *sql.DB, client s3Client, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		db:     db,
		client: client,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

func newS3Client(cfg Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Run writes a consistent snapshot of the database and uploads it. It
// returns the object key.
func (m *Manager) Run(ctx context.Context) (string, error) {
	tmpDir, err := os.MkdirTemp("", "pantrytracker-backup-")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	snapshot := filepath.Join(tmpDir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, "VACUUM INTO '"+strings.ReplaceAll(snapshot, "'", "''")+"'"); err != nil {
		return "", fmt.Errorf("snapshot database: %w", err)
	}
	data, err := os.ReadFile(snapshot)
	if err != nil {
		return "", fmt.Errorf("read snapshot: %w", err)
	}

	ext := snapshotExt
	if m.cfg.Passphrase != "" {
		if data, err = Encrypt(data, m.cfg.Passphrase); err != nil {
			return "", fmt.Errorf("encrypt snapshot: %w", err)
		}
		ext = encryptedExt
	}

	key := m.cfg.Prefix + "backup-" + m.now().Format(keyTimestamp) + ext
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}

	m.logger.Info("backup uploaded", "bucket", m.cfg.Bucket, "key", key, "bytes", len(data))
	return key, nil
}

// List returns snapshot keys, oldest first.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	var keys []string
	var token *string
	for {
		out, err := m.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(m.cfg.Bucket),
			Prefix:            aws.String(m.cfg.Prefix + "backup-"),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list backups: %w", err)
		}
		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	sort.Strings(keys)
	return keys, nil
}

// Prune deletes all but the newest Keep snapshots and reports how many were
// removed.
func (m *Manager) Prune(ctx context.Context) (int, error) {
	if m.cfg.Keep < 1 {
		return 0, nil
	}
	keys, err := m.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(keys) <= m.cfg.Keep {
		return 0, nil
	}

	stale := keys[:len(keys)-m.cfg.Keep]
	for i, key := range stale {
		if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.Bucket),
			Key:    aws.String(key),
		}); err != nil {
			return i, fmt.Errorf("delete backup %s: %w", key, err)
		}
	}
	m.logger.Info("old backups pruned", "count", len(stale))
	return len(stale), nil
}

// Restore downloads the snapshot at key (the newest when key is empty) and
// writes it to dstPath, which must not exist yet.
func (m *Manager) Restore(ctx context.Context, key, dstPath string) (string, error) {
	if key == "" {
		keys, err := m.List(ctx)
		if err != nil {
			return "", err
		}
		if len(keys) == 0 {
			return "", errors.New("no backups found")
		}
		key = keys[len(keys)-1]
	}

	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("download backup %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("read backup %s: %w", key, err)
	}
	if strings.HasSuffix(key, encryptedExt) {
		if m.cfg.Passphrase == "" {
			return "", errors.New("backup is encrypted: passphrase required")
		}
		if data, err = Decrypt(data, m.cfg.Passphrase); err != nil {
			return "", err
		}
	}
	if !bytes.HasPrefix(data, sqliteHeader) {
		return "", fmt.Errorf("backup %s is not a SQLite database", key)
	}

	f, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dstPath, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", dstPath, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", dstPath, err)
	}

	m.logger.Info("backup restored", "key", key, "path", dstPath)
	return key, nil
}
