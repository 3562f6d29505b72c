package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quakead/pkg/model"
	"github.com/m-mizutani/quakead/pkg/usecase/campaign"
	"github.com/m-mizutani/quakead/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// newCampaign builds the campaign use case with history, export storage and
// policy. Gemini is attached only when withGemini is true so commands that do
// not draft email run without LLM credentials.
func (cfg *config) newCampaign(ctx context.Context, withGemini bool) (*campaign.UseCase, func(), error) {
	store, closer, err := cfg.newCampaignStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	opts := []campaign.Option{}

	storage, err := cfg.newStorage(ctx)
	if err != nil {
		closer()
		return nil, nil, err
	}
	opts = append(opts, campaign.WithStorage(storage))

	p, err := cfg.newPolicy(ctx)
	if err != nil {
		closer()
		return nil, nil, err
	}
	opts = append(opts, campaign.WithPolicy(p))

	if withGemini {
		gemini, err := cfg.newGemini(ctx)
		if err != nil {
			closer()
			return nil, nil, err
		}
		opts = append(opts, campaign.WithGemini(gemini))
	}

	return campaign.New(store, opts...), closer, nil
}

func emailCommand() *cli.Command {
	var (
		cfg             config
		criteria        model.Criteria
		index           int64
		campaignContext string
		save            bool
		export          bool
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "target",
			Aliases:     []string{"n"},
			Usage:       "Draft for the n-th target of the search (1-based)",
			Value:       1,
			Destination: &index,
		},
		&cli.StringFlag{
			Name:        "context",
			Aliases:     []string{"c"},
			Usage:       "Campaign context given to the model (offer, tone, deadline)",
			Destination: &campaignContext,
		},
		&cli.BoolFlag{
			Name:        "save",
			Usage:       "Save the draft to the campaign history",
			Destination: &save,
		},
		&cli.BoolFlag{
			Name:        "export",
			Usage:       "Save and export the draft as a text file",
			Destination: &export,
		},
	}
	flags = append(flags, criteriaFlags(&criteria)...)
	flags = append(flags, dataFlags(&cfg)...)
	flags = append(flags, bridgeFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, campaignFlags(&cfg)...)

	return &cli.Command{
		Name:  "email",
		Usage: "Find targets and draft an outreach email for one of them",
		Flags: flags,
		Action: withLogger(func(ctx context.Context, c *cli.Command) error {
			uc, closeStore, err := cfg.newCampaign(ctx, true)
			if err != nil {
				return err
			}
			defer closeStore()

			b, closeBridge, err := cfg.openBridge(ctx, c)
			if err != nil {
				return err
			}
			defer closeBridge()

			s := campaign.NewSession(b)
			result, err := uc.FindTargets(ctx, s, criteria)
			if err != nil {
				return err
			}
			if len(result.Targets) == 0 {
				return goerr.Wrap(campaign.ErrNoTarget, "no household matches the criteria")
			}

			if _, err := s.Select(int(index)); err != nil {
				return err
			}

			draft, err := uc.GenerateEmail(ctx, s, campaignContext)
			if err != nil {
				return err
			}

			w := c.Root().Writer
			fmt.Fprintf(w, "To: %s <%s>\n", draft.Target.Person.FullName(), draft.Target.Person.Email)
			printDraft(w, draft)

			if !save && !export {
				return nil
			}

			saved, err := uc.Save(ctx, s)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "\nSaved campaign %s\n", saved.ID)
			logging.From(ctx).Info("campaign saved", "campaign_id", saved.ID, "person_id", saved.PersonID)

			if export {
				location, err := uc.Export(ctx, saved.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "Exported to %s\n", location)
			}
			return nil
		}),
	}
}
