// Command sync reconciles new employees from the payroll system into the
// workforce-management system for one client.
//
// Usage:
//
//	sync -client gardaworld [-dry-run]
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"employee-sync/internal/awsx"
	"employee-sync/internal/config"
	"employee-sync/internal/events"
	"employee-sync/internal/providers/connecteam"
	"employee-sync/internal/providers/costpoint"
	"employee-sync/internal/sftpdrop"
	"employee-sync/internal/sync"
)

const runTimeout = 2 * time.Hour

func main() {
	clientName := flag.String("client", "", "client identifier used for secret lookup")
	dryRun := flag.Bool("dry-run", false, "resolve everything but create no users")
	flag.Parse()

	os.Exit(run(*clientName, *dryRun))
}

func run(clientName string, dryRun bool) int {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if clientName == "" {
		logger.Error("the -client flag is required")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	settings, err := config.LoadSettings()
	if err != nil {
		logger.Error("configuration_error", "error", err.Error())
		return 1
	}
	sink := events.NewSink(logger, clientName, settings.FunctionName)

	awsCfg, err := awsx.LoadConfig(ctx, settings.AWSRegion)
	if err != nil {
		sink.Error("configuration_error", "aws config load failed", "error", err.Error())
		return 1
	}
	mailCfg, err := awsx.LoadConfig(ctx, settings.MailRegion)
	if err != nil {
		sink.Error("configuration_error", "mail region config load failed", "error", err.Error())
		return 1
	}

	secrets := awsx.NewSecretStore(awsCfg, logger)

	srcSecret, err := secrets.GetSecret(ctx, "costpoint/"+clientName)
	if err != nil {
		sink.Error("configuration_error", "source secret lookup failed", "error", err.Error())
		return 1
	}
	srcCfg := config.SourceFromSecret(srcSecret)
	if err := srcCfg.Validate(); err != nil {
		sink.Error("configuration_error", "source secret incomplete", "error", err.Error())
		return 1
	}

	// Secret path keeps the historical "connectteam" spelling.
	tgtSecret, err := secrets.GetSecret(ctx, "connectteam/"+clientName)
	if err != nil {
		sink.Error("configuration_error", "target secret lookup failed", "error", err.Error())
		return 1
	}
	tgtCfg, err := config.TargetFromSecret(tgtSecret)
	if err != nil {
		sink.Error("configuration_error", "target secret incomplete", "error", err.Error())
		return 1
	}

	snapshots := awsx.NewSnapshotStore(awsCfg, settings.SnapshotBucket, settings.SnapshotPrefix, sink)
	if settings.SFTPHost != "" {
		drop, err := sftpdrop.New(sftpdrop.Config{
			Host:      settings.SFTPHost,
			Port:      settings.SFTPPort,
			User:      settings.SFTPUser,
			Pass:      settings.SFTPPass,
			RemoteDir: settings.SFTPRemoteDir,
		})
		if err != nil {
			sink.Error("configuration_error", "sftp mirror misconfigured", "error", err.Error())
			return 1
		}
		snapshots = snapshots.WithMirror(drop)
	}

	pipeline := &sync.Pipeline{
		Source:    costpoint.New(srcCfg),
		Target:    connecteam.New(tgtCfg),
		Snapshots: snapshots,
		Events:    sink,
		Mail:      awsx.NewMailer(mailCfg),
		MailFrom:  settings.MailFrom,
		MailTo:    settings.MailTo,
		DryRun:    dryRun,
	}
	return pipeline.Run(ctx)
}
