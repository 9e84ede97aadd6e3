package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var dupesCmd = &cobra.Command{
	Use:   "dupes",
	Short: "只执行一次重复检测",
	Long: `不扫描任何文件夹，直接对整个编目执行一次重复检测。
与同步会话不同，即使没有任何文件夹发生变化也会执行。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, cleanup, err := buildController()
		if err != nil {
			return err
		}
		defer cleanup()

		report, err := ctrl.FindDuplicates(context.Background())
		if err != nil {
			return fmt.Errorf("duplicate scan failed: %w", err)
		}
		fmt.Printf("Found %d duplicate groups; %d tracks marked duplicate, %d cleared.\n",
			report.Groups, report.TracksMarkedDuplicate, report.TracksCleared)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dupesCmd)
}
