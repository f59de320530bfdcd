package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"MediCare/internal/adherence"
	"MediCare/internal/dosing"
	"MediCare/internal/model/dto"
)

func (a *app) signupCmd() *cobra.Command {
	var req dto.SignUpRequest

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Password == "" {
				req.Password = os.Getenv("MEDICARE_PASSWORD")
			}
			resp, err := a.client.SignUp(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed up as %s (%s)\n", resp.User.Email, resp.User.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&req.Password, "password", "", "Password (or MEDICARE_PASSWORD)")
	cmd.Flags().StringVar(&req.FullName, "name", "", "Full name")
	cmd.Flags().StringVar(&req.Role, "role", "patient", "patient or caretaker")
	cmd.Flags().StringVar(&req.Timezone, "timezone", "", "IANA timezone, e.g. Europe/Berlin")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) loginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("MEDICARE_PASSWORD")
			}
			resp, err := a.client.SignIn(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", resp.User.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (or MEDICARE_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the local session",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.client.SignOut(cmd.Context())
			if serr := a.store.Save(a.client.Session()); serr != nil {
				return serr
			}
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: server sign-out failed: %v\n", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func (a *app) medsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meds",
		Short: "Manage medications",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List medications",
		RunE: func(cmd *cobra.Command, args []string) error {
			meds, err := a.client.ListMedications(cmd.Context(), a.client.Session().UserID)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tDOSAGE\tFREQUENCY")
			for _, m := range meds {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", m.ID, m.Name, deref(m.Dosage), deref(m.Frequency))
			}
			return w.Flush()
		},
	})

	var dosage, frequency string
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a medication",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := dto.CreateMedicationRequest{Name: args[0]}
			if dosage != "" {
				req.Dosage = &dosage
			}
			if frequency != "" {
				req.Frequency = &frequency
			}
			med, err := a.client.CreateMedication(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (id %d)\n", med.Name, med.ID)
			return nil
		},
	}
	add.Flags().StringVar(&dosage, "dosage", "", "Dosage, e.g. 10mg")
	add.Flags().StringVar(&frequency, "frequency", "", "Frequency, e.g. daily")
	cmd.AddCommand(add)

	return cmd
}

func (a *app) takeCmd() *cobra.Command {
	var date, proofFile string

	cmd := &cobra.Command{
		Use:   "take MEDICATION_ID",
		Short: "Mark a medication as taken, optionally with a proof photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			medID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid medication id %q", args[0])
			}

			loc := a.location()
			takenAt, err := takenTime(date, time.Now().In(loc))
			if err != nil {
				return err
			}

			var file *dosing.ProofFile
			if proofFile != "" {
				data, err := os.ReadFile(proofFile)
				if err != nil {
					return fmt.Errorf("read proof: %w", err)
				}
				file = &dosing.ProofFile{Name: filepath.Base(proofFile), Data: data}
			}

			out := cmd.OutOrStdout()
			coord := dosing.NewCoordinator(a.client, nil, dosing.Options{
				OnTransition: func(t dosing.Transition) { printTransition(out, t) },
			})
			// 乐观插入和回滚都基于远端已有记录
			if err := coord.Load(cmd.Context()); err != nil {
				return err
			}

			created, err := coord.MarkTaken(cmd.Context(), medID, takenAt, file)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Logged dose %d at %s\n", created.ID, created.TakenAt.In(loc).Format(time.RFC3339))
			summary := adherence.Summarize(coord.Mirror().TakenDates(loc), time.Now().In(loc), adherence.DefaultMaxStreakDays)
			fmt.Fprintf(out, "Streak: %d day(s), this month: %d%%\n", summary.Streak, summary.MonthlyRate)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Day the dose was taken (yyyy-MM-dd), defaults to now")
	cmd.Flags().StringVar(&proofFile, "proof", "", "Path to a proof photo")
	return cmd
}

func (a *app) logsCmd() *cobra.Command {
	var withURLs bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "List dose logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			coord := dosing.NewCoordinator(a.client, nil, dosing.Options{})
			if err := coord.Load(cmd.Context()); err != nil {
				return err
			}
			logs := coord.Mirror().Logs()

			var urls map[int64]string
			if withURLs {
				urls = coord.SignedProofURLs(cmd.Context(), logs, time.Minute)
			}

			loc := a.location()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tMEDICATION\tTAKEN AT\tPROOF")
			for _, l := range logs {
				proof := deref(l.ProofPath)
				if u, ok := urls[l.ID]; ok {
					proof = u
				}
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", l.ID, l.MedicationID, l.TakenAt.In(loc).Format("2006-01-02 15:04"), proof)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&withURLs, "urls", false, "Include signed proof URLs")
	return cmd
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show streak and monthly adherence",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.client.Summary(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Date:           %s (%s)\n", s.ReferenceDate, s.Timezone)
			fmt.Fprintf(out, "Taken today:    %s\n", yesNo(s.TakenToday))
			fmt.Fprintf(out, "Current streak: %d\n", s.Streak)
			fmt.Fprintf(out, "Longest streak: %d\n", s.LongestStreak)
			fmt.Fprintf(out, "This month:     %d%%\n", s.MonthlyRate)
			return nil
		},
	}
}

func (a *app) calendarCmd() *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Show the adherence calendar for a month",
		RunE: func(cmd *cobra.Command, args []string) error {
			cal, err := a.client.Calendar(cmd.Context(), month)
			if err != nil {
				return err
			}
			printCalendar(cmd.OutOrStdout(), cal)
			return nil
		},
	}

	cmd.Flags().StringVar(&month, "month", "", "Month as yyyy-MM, defaults to the current month")
	return cmd
}

func (a *app) proofURLCmd() *cobra.Command {
	var expires time.Duration

	cmd := &cobra.Command{
		Use:   "proof-url PATH",
		Short: "Create a temporary link to a proof photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.client.CreateSignedURL(cmd.Context(), dosing.DefaultProofBucket, args[0], expires)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), u)
			return nil
		},
	}

	cmd.Flags().DurationVar(&expires, "expires", time.Minute, "Link lifetime")
	return cmd
}

// takenTime date 为空时取 now，否则取该日期的当前钟点
func takenTime(date string, now time.Time) (time.Time, error) {
	if date == "" {
		return now, nil
	}
	day, err := adherence.ParseDay(date, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q, expected yyyy-MM-dd", date)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), now.Hour(), now.Minute(), now.Second(), 0, now.Location()), nil
}

func printTransition(w io.Writer, t dosing.Transition) {
	if t.Err != nil {
		fmt.Fprintf(w, "  %s -> %s: %v\n", t.From, t.To, t.Err)
		return
	}
	fmt.Fprintf(w, "  %s -> %s\n", t.From, t.To)
}

var calendarMarks = map[adherence.DayStatus]string{
	adherence.DayTaken:    "x",
	adherence.DayMissed:   ".",
	adherence.DayToday:    "o",
	adherence.DayUpcoming: " ",
}

// printCalendar 按周一开头的周排版
func printCalendar(w io.Writer, cal *dto.CalendarResponse) {
	fmt.Fprintf(w, "%s (%s)   x taken  . missed  o today\n", cal.Month, cal.Timezone)
	fmt.Fprintln(w, " Mo  Tu  We  Th  Fr  Sa  Su")
	if len(cal.Days) == 0 {
		return
	}

	first, err := time.Parse("2006-01-02", cal.Days[0].Date)
	if err != nil {
		return
	}
	offset := (int(first.Weekday()) + 6) % 7

	var b strings.Builder
	b.WriteString(strings.Repeat("    ", offset))
	for i, d := range cal.Days {
		fmt.Fprintf(&b, "%2d%s ", i+1, calendarMarks[d.Status])
		if (offset+i+1)%7 == 0 {
			b.WriteString("\n")
		}
	}
	fmt.Fprintln(w, strings.TrimRight(b.String(), " \n"))
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
