package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/rubiojr/topicsync/pkg/core"
	"github.com/rubiojr/topicsync/pkg/services/extrawork"
	"github.com/rubiojr/topicsync/pkg/session"
	"github.com/urfave/cli/v3"
)

var jsonFlag = &cli.BoolFlag{
	Name:  "json",
	Usage: "Print JSON instead of formatted text",
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// BadgesCommand creates the badges command
func BadgesCommand() *cli.Command {
	return &cli.Command{
		Name:  "badges",
		Usage: "List and manage badges",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List badges",
				Flags: []cli.Flag{jsonFlag},
				Action: func(ctx context.Context, c *cli.Command) error {
					return withSession(ctx, c, func(ctx context.Context, s *session.Session) error {
						list, err := s.Services().Badges.Refresh(ctx)
						if err != nil {
							return err
						}
						if c.Bool("json") {
							return printJSON(list)
						}
						fmt.Println(renderBadges(list))
						return nil
					})
				},
			},
			{
				Name:      "add",
				Usage:     "Create a badge",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Badge description"},
					&cli.StringFlag{Name: "icon", Usage: "Badge icon"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					name, err := argument(c, "NAME")
					if err != nil {
						return err
					}
					return withSession(ctx, c, func(ctx context.Context, s *session.Session) error {
						b, err := s.Services().Badges.Create(ctx, core.NewBadge{
							Name:        name,
							Description: c.String("description"),
							Icon:        c.String("icon"),
						})
						if err != nil {
							return err
						}
						fmt.Printf("Created badge %s (%s)\n", b.Name, b.ID)
						return nil
					})
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a badge",
				ArgsUsage: "ID",
				Action: func(ctx context.Context, c *cli.Command) error {
					id, err := argument(c, "ID")
					if err != nil {
						return err
					}
					return withSession(ctx, c, func(ctx context.Context, s *session.Session) error {
						if err := s.Services().Badges.Delete(ctx, id); err != nil {
							return err
						}
						fmt.Printf("Deleted badge %s\n", id)
						return nil
					})
				},
			},
		},
	}
}

// ExtraWorkCommand creates the extra-work command
func ExtraWorkCommand() *cli.Command {
	review := func(approve bool) cli.ActionFunc {
		return func(ctx context.Context, c *cli.Command) error {
			id, err := argument(c, "ID")
			if err != nil {
				return err
			}
			return withSession(ctx, c, func(ctx context.Context, s *session.Session) error {
				svc := s.Services().ExtraWork
				var w core.ExtraWork
				if approve {
					w, err = svc.Approve(ctx, id)
				} else {
					w, err = svc.Reject(ctx, id)
				}
				if err != nil {
					return err
				}
				fmt.Printf("Extra work %s is now %s\n", w.ID, w.Status)
				return nil
			})
		}
	}

	return &cli.Command{
		Name:    "extra-work",
		Aliases: []string{"ew"},
		Usage:   "Submit and review extra work",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List extra work entries",
				Flags: []cli.Flag{
					jsonFlag,
					&cli.StringFlag{Name: "status", Usage: "Only show entries with this status (pending, approved, rejected)"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return withSession(ctx, c, func(ctx context.Context, s *session.Session) error {
						list, err := s.Services().ExtraWork.Refresh(ctx)
						if err != nil {
							return err
						}
						if status := c.String("status"); status != "" {
							list = extrawork.ByStatus(list, core.WorkStatus(status))
						}
						if c.Bool("json") {
							return printJSON(list)
						}
						fmt.Println(renderExtraWork(list))
						return nil
					})
				},
			},
			{
				Name:      "add",
				Usage:     "Submit extra work",
				ArgsUsage: "USER HOURS",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "What the work was"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					if c.Args().Len() != 2 {
						return fmt.Errorf("expected USER and HOURS arguments")
					}
					hours, err := strconv.ParseFloat(c.Args().Get(1), 64)
					if err != nil {
						return fmt.Errorf("invalid hours %q: %w", c.Args().Get(1), err)
					}
					return withSession(ctx, c, func(ctx context.Context, s *session.Session) error {
						w, err := s.Services().ExtraWork.Submit(ctx, core.NewExtraWork{
							User:        c.Args().Get(0),
							Hours:       hours,
							Description: c.String("description"),
						})
						if err != nil {
							return err
						}
						fmt.Printf("Submitted %s for %s (%s)\n", formatHours(w.Hours), w.User, w.ID)
						return nil
					})
				},
			},
			{
				Name:      "approve",
				Usage:     "Approve a pending entry",
				ArgsUsage: "ID",
				Action:    review(true),
			},
			{
				Name:      "reject",
				Usage:     "Reject a pending entry",
				ArgsUsage: "ID",
				Action:    review(false),
			},
		},
	}
}

// NotificationsCommand creates the notifications command
func NotificationsCommand() *cli.Command {
	return &cli.Command{
		Name:    "notifications",
		Aliases: []string{"n"},
		Usage:   "Send and read notifications",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List notifications",
				Flags: []cli.Flag{
					jsonFlag,
					&cli.BoolFlag{Name: "unread", Usage: "Only show unread notifications"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return withSession(ctx, c, func(ctx context.Context, s *session.Session) error {
						list, err := s.Services().Notifications.Refresh(ctx)
						if err != nil {
							return err
						}
						if c.Bool("unread") {
							list = unreadOnly(list)
						}
						if c.Bool("json") {
							return printJSON(list)
						}
						fmt.Println(renderNotifications(list))
						return nil
					})
				},
			},
			{
				Name:      "send",
				Usage:     "Send a notification",
				ArgsUsage: "TITLE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "body", Aliases: []string{"b"}, Usage: "Notification body"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					title, err := argument(c, "TITLE")
					if err != nil {
						return err
					}
					return withSession(ctx, c, func(ctx context.Context, s *session.Session) error {
						n, err := s.Services().Notifications.Send(ctx, core.NewNotification{
							Title: title,
							Body:  c.String("body"),
						})
						if err != nil {
							return err
						}
						fmt.Printf("Sent notification %s\n", n.ID)
						return nil
					})
				},
			},
			{
				Name:      "read",
				Usage:     "Mark a notification as read",
				ArgsUsage: "ID",
				Action: func(ctx context.Context, c *cli.Command) error {
					id, err := argument(c, "ID")
					if err != nil {
						return err
					}
					return withSession(ctx, c, func(ctx context.Context, s *session.Session) error {
						return s.Services().Notifications.MarkRead(ctx, id)
					})
				},
			},
			{
				Name:  "read-all",
				Usage: "Mark every notification as read",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withSession(ctx, c, func(ctx context.Context, s *session.Session) error {
						return s.Services().Notifications.MarkAllRead(ctx)
					})
				},
			},
		},
	}
}

func unreadOnly(list []core.Notification) []core.Notification {
	out := make([]core.Notification, 0, len(list))
	for _, n := range list {
		if !n.Read {
			out = append(out, n)
		}
	}
	return out
}

// StatsCommand creates the stats command
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show platform statistics",
		Flags: []cli.Flag{jsonFlag},
		Action: func(ctx context.Context, c *cli.Command) error {
			return withSession(ctx, c, func(ctx context.Context, s *session.Session) error {
				st, err := s.Services().Stats.Refresh(ctx)
				if err != nil {
					return err
				}
				if c.Bool("json") {
					return printJSON(st)
				}
				fmt.Println(renderStats(st))
				return nil
			})
		},
	}
}
