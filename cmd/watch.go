package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/rubiojr/topicsync/pkg/core"
	"github.com/rubiojr/topicsync/pkg/session"
	"github.com/urfave/cli/v3"
)

var watchTopics = []string{core.TopicBadges, core.TopicExtraWork, core.TopicNotifications, core.TopicStats}

// WatchCommand creates the watch command
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Follow collections live, printing them every time the server reports a change",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "topic",
				Aliases: []string{"t"},
				Usage:   "Collection to follow (badges, extra-work, notifications, stats), repeatable. Defaults to all",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			topics := c.StringSlice("topic")
			if len(topics) == 0 {
				topics = watchTopics
			}
			for _, t := range topics {
				if !slices.Contains(watchTopics, t) {
					return fmt.Errorf("unknown topic %q", t)
				}
			}
			return watch(ctx, c, topics)
		},
	}
}

func watch(ctx context.Context, c *cli.Command, topics []string) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	s, err := session.New(cfg.Client)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.Start(ctx); err != nil {
		return err
	}

	svc := s.Services()
	var (
		badgesC        <-chan []core.Badge
		extraWorkC     <-chan []core.ExtraWork
		notificationsC <-chan []core.Notification
		statsC         <-chan core.PlatformStats
	)
	for _, t := range topics {
		switch t {
		case core.TopicBadges:
			sub := svc.Badges.GetAll()
			defer sub.Close()
			badgesC = sub.C
		case core.TopicExtraWork:
			sub := svc.ExtraWork.GetAll()
			defer sub.Close()
			extraWorkC = sub.C
		case core.TopicNotifications:
			sub := svc.Notifications.GetAll()
			defer sub.Close()
			notificationsC = sub.C
		case core.TopicStats:
			sub := svc.Stats.GetAll()
			defer sub.Close()
			statsC = sub.C
		}
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("Watching %v on %s (Ctrl+C to stop)", topics, cfg.Client.ServerURL)))
	for {
		var out string
		select {
		case <-ctx.Done():
			fmt.Println("\nStopped.")
			return nil
		case list := <-badgesC:
			out = renderBadges(list)
		case list := <-extraWorkC:
			out = renderExtraWork(list)
		case list := <-notificationsC:
			out = renderNotifications(list)
		case st := <-statsC:
			out = renderStats(st)
		}
		fmt.Println(metaStyle.Render(time.Now().Format("15:04:05")))
		fmt.Println(out)
	}
}
