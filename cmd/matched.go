package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/bidradar/internal/announcement"
	"github.com/spigell/bidradar/internal/matching"
	"github.com/spigell/bidradar/internal/plan"
)

const (
	PromptNext           = "Next page"
	PromptPrev           = "Previous page"
	PromptPageToFile     = "Dump page to file"
	PromptReportByAgency = "Report by agency"
	PromptExit           = "Exit"
)

var errExit = errors.New("exit requested")

var matchedCmd = &cobra.Command{
	Use:   "matched",
	Short: "List open announcements a subscriber is eligible for",
	Run: func(cmd *cobra.Command, _ []string) {
		matched(cmd)
	},
}

func init() {
	rootCmd.AddCommand(matchedCmd)

	matchedCmd.Flags().String("subscriber", "", "subscriber id (required)")
	matchedCmd.Flags().Int("page", 1, "page number")
	matchedCmd.Flags().Int("page-size", matching.DefaultPageSize, "page size")
	matchedCmd.Flags().String("sort", matching.SortPosted, "sort order: posted, deadline, price, importance or relevance")
	matchedCmd.Flags().BoolP("interactive", "i", false, "browse pages interactively")
	matchedCmd.Flags().Bool("dry-run", false, "use an in-memory store seeded from the config")

	_ = matchedCmd.MarkFlagRequired("subscriber")
}

func matched(cmd *cobra.Command) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger := newLogger()
	defer logger.Sync() //nolint:errcheck

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	st, closeStore, err := openStorage(ctx, config, dryRun, logger)
	if err != nil {
		logger.Fatal("opening store", zap.Error(err))
	}
	defer closeStore()

	subscriberID, _ := cmd.Flags().GetString("subscriber")
	sub, err := st.Subscriber(ctx, subscriberID)
	if err != nil {
		logger.Fatal("loading subscriber", zap.Error(err))
	}

	candidates, err := st.ListOpen(ctx, time.Now())
	if err != nil {
		logger.Fatal("loading open announcements", zap.Error(err))
	}

	engine := matching.NewEngine(nil, plan.NewLimiter(st, config.Plans), logger)

	req := matching.ListRequest{
		SubscriberID: sub.ID,
		Profile:      &sub.Profile,
		Candidates:   candidates,
	}
	req.Page, _ = cmd.Flags().GetInt("page")
	req.PageSize, _ = cmd.Flags().GetInt("page-size")
	req.SortBy, _ = cmd.Flags().GetString("sort")

	interactive, _ := cmd.Flags().GetBool("interactive")
	if !interactive {
		page, err := engine.ListMatched(ctx, req)
		if err != nil {
			logger.Fatal("listing matched announcements", zap.Error(err))
		}
		out, _ := json.MarshalIndent(page, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return
	}

	if err := browse(ctx, engine, req, logger); err != nil && !errors.Is(err, errExit) {
		logger.Fatal("exiting", zap.Error(err))
	}
}

// browse walks the matched pages until the user exits.
func browse(ctx context.Context, engine *matching.Engine, req matching.ListRequest, logger *zap.Logger) error {
	for {
		page, err := engine.ListMatched(ctx, req)
		if err != nil {
			return err
		}

		logger.Info("current page of matched announcements",
			zap.Int("page", page.Page),
			zap.Int("total pages", page.TotalPages),
			zap.Int("matched", page.Matched),
			zap.Int("plan limit", page.Limit),
		)
		for _, item := range page.Items {
			logger.Info(item.Announcement.Title,
				zap.String("url", item.Announcement.URL),
				zap.String("agency", item.Announcement.Agency),
				zap.Int("soft score", item.Soft.Score),
			)
		}

		prompt := promptui.Select{
			Label: fmt.Sprintf("Page %d of %d", page.Page, max(page.TotalPages, 1)),
			Items: []string{PromptNext, PromptPrev, PromptPageToFile, PromptReportByAgency, PromptExit},
		}
		_, action, err := prompt.Run()
		if err != nil {
			return err
		}

		if err := handlePageAction(action, &req, page, logger); err != nil {
			return err
		}
	}
}

func handlePageAction(action string, req *matching.ListRequest, page *matching.Page, logger *zap.Logger) error {
	switch action {
	case PromptNext:
		if page.Page < page.TotalPages {
			req.Page = page.Page + 1
		}
		return nil
	case PromptPrev:
		if page.Page > 1 {
			req.Page = page.Page - 1
		}
		return nil
	case PromptPageToFile:
		filename, err := pageAnnouncements(page).DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump page to file: %w", err)
		}
		logger.Info("dumping page to file", zap.String("filename", filename))
		return nil
	case PromptReportByAgency:
		batch := pageAnnouncements(page)
		pretty, _ := json.MarshalIndent(batch.ReportByAgency(), "", "  ")
		logger.Info(string(pretty), zap.Int("announcements count", batch.Len()))
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func pageAnnouncements(page *matching.Page) *announcement.Announcements {
	items := make([]*announcement.Announcement, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, item.Announcement)
	}
	return announcement.New(items...)
}
