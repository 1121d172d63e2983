// Package sftpdrop mirrors audit snapshots to an SFTP directory for
// clients whose tooling consumes files from a drop location rather than S3.
package sftpdrop

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

type Config struct {
	Host      string
	Port      int
	User      string
	Pass      string
	RemoteDir string
}

// Drop writes snapshot bodies into the configured remote directory. Each
// Put opens its own connection; sync runs write a handful of small files,
// so holding a session open is not worth the lifecycle bookkeeping.
type Drop struct {
	cfg Config
}

func New(cfg Config) (*Drop, error) {
	if cfg.Host == "" || cfg.User == "" || cfg.Pass == "" {
		return nil, fmt.Errorf("sftpdrop: host, user and pass are required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 22
	}
	if cfg.RemoteDir == "" {
		cfg.RemoteDir = "/"
	}
	return &Drop{cfg: cfg}, nil
}

// Put uploads body as a file named name in the remote directory.
func (d *Drop) Put(ctx context.Context, name string, body []byte) error {
	// TODO: load known_hosts once a client requires host-key pinning.
	sshCfg := &ssh.ClientConfig{
		User:            d.cfg.User,
		Auth:            []ssh.AuthMethod{ssh.Password(d.cfg.Pass)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         20 * time.Second,
	}

	addr := fmt.Sprintf("%s:%d", d.cfg.Host, d.cfg.Port)

	// ssh.Dial has no context form; race the dial against ctx.
	type dialRes struct {
		client *ssh.Client
		err    error
	}
	ch := make(chan dialRes, 1)
	go func() {
		c, err := ssh.Dial("tcp", addr, sshCfg)
		ch <- dialRes{client: c, err: err}
	}()

	var sshClient *ssh.Client
	select {
	case <-ctx.Done():
		return fmt.Errorf("sftpdrop: dial canceled: %w", ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return fmt.Errorf("sftpdrop: dial error: %w", r.err)
		}
		sshClient = r.client
	}
	defer sshClient.Close()

	sftpCli, err := sftp.NewClient(sshClient)
	if err != nil {
		return fmt.Errorf("sftpdrop: new client: %w", err)
	}
	defer sftpCli.Close()

	if err := sftpCli.MkdirAll(d.cfg.RemoteDir); err != nil {
		return fmt.Errorf("sftpdrop: mkdir %s: %w", d.cfg.RemoteDir, err)
	}

	remotePath := path.Join(d.cfg.RemoteDir, name)
	dst, err := sftpCli.Create(remotePath)
	if err != nil {
		return fmt.Errorf("sftpdrop: create remote file: %w", err)
	}
	defer dst.Close()

	if _, err := dst.ReadFrom(bytes.NewReader(body)); err != nil {
		return fmt.Errorf("sftpdrop: upload copy: %w", err)
	}

	return nil
}
