package main

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"text/tabwriter"

	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/Folexy13/scholarhunter-sub001/pkg/utils"
	"github.com/spf13/cobra"
)

var (
	page     int
	pageSize int
	query    string
)

type scholarshipPage struct {
	Data       []models.Scholarship `json:"data"`
	Pagination utils.PageMeta       `json:"pagination"`
}

type applicationPage struct {
	Data       []models.Application `json:"data"`
	Pagination utils.PageMeta       `json:"pagination"`
}

var scholarshipsCmd = &cobra.Command{
	Use:     "scholarships",
	Aliases: []string{"sch"},
	Short:   "List or search scholarships",
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		if err := a.requireSession(); err != nil {
			return err
		}

		params := pageQuery()
		path := "/api/v1/scholarships"
		if query != "" {
			path += "/search"
			params.Set("q", query)
		}

		var res scholarshipPage
		if err := a.api.Get(cmd.Context(), path+"?"+params.Encode(), &res); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tORGANIZATION\tAMOUNT\tDEADLINE")
		for _, s := range res.Data {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				s.ID, s.Name, s.Organization, formatAmount(s.Amount, s.Currency), s.Deadline.Format("2006-01-02"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		printPageFooter(out, res.Pagination)
		return nil
	}),
}

var applicationsCmd = &cobra.Command{
	Use:     "applications",
	Aliases: []string{"apps"},
	Short:   "List your applications",
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		if err := a.requireSession(); err != nil {
			return err
		}

		var res applicationPage
		if err := a.api.Get(cmd.Context(), "/api/v1/applications?"+pageQuery().Encode(), &res); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSCHOLARSHIP\tSTATUS\tPRIORITY\tSUBMITTED")
		for _, item := range res.Data {
			submitted := "-"
			if item.SubmittedAt != nil {
				submitted = item.SubmittedAt.Format("2006-01-02")
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", item.ID, item.ScholarshipName, item.Status, item.Priority, submitted)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		printPageFooter(out, res.Pagination)
		return nil
	}),
}

func init() {
	for _, cmd := range []*cobra.Command{scholarshipsCmd, applicationsCmd} {
		cmd.Flags().IntVar(&page, "page", 1, "Page number")
		cmd.Flags().IntVar(&pageSize, "page-size", utils.DefaultPageSize, "Items per page")
	}
	scholarshipsCmd.Flags().StringVarP(&query, "search", "s", "", "Search name, organization and description")
}

func pageQuery() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(page))
	v.Set("page_size", strconv.Itoa(pageSize))
	return v
}

func formatAmount(amount *float64, currency string) string {
	if amount == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f %s", *amount, currency)
}

func printPageFooter(w io.Writer, meta utils.PageMeta) {
	fmt.Fprintf(w, "\npage %d of %d (%d total)\n", meta.Page, max(meta.TotalPages, 1), meta.TotalItems)
}
