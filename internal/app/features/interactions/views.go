package interactions

import (
	"fmt"

	"github.com/dalemusser/promohub/internal/app/admission"
	"github.com/dalemusser/promohub/internal/app/lifecycle"
	"github.com/dalemusser/promohub/internal/app/platform"
	"github.com/dalemusser/promohub/internal/app/system/customid"
	"github.com/dalemusser/promohub/internal/domain/models"
)

// Modal input ids.
const (
	InputFirstName = "first_name"
	InputLastName  = "last_name"
	InputName      = "name"
	InputStartDate = "start_date"
	InputEndDate   = "end_date"
)

// displayDate is how dates are shown to French-speaking users.
const displayDate = "02/01/2006"

func identityModal(kind customid.Kind, title string, names admission.Names) platform.Modal {
	return platform.Modal{
		CustomID: customid.New(kind).String(),
		Title:    title,
		Inputs:   namesInputs(names),
	}
}

func namesInputs(names admission.Names) []platform.TextInput {
	return []platform.TextInput{
		{ID: InputFirstName, Label: "Prénom", Value: names.FirstName, Required: true, MinLength: 1, MaxLength: admission.MaxNameLength},
		{ID: InputLastName, Label: "Nom", Value: names.LastName, Required: true, MinLength: 1, MaxLength: admission.MaxNameLength},
	}
}

func inscriptionModal(customID, promoName string, names admission.Names) platform.Modal {
	return platform.Modal{
		CustomID: customID,
		Title:    truncate("Inscription : "+promoName, 45),
		Inputs:   namesInputs(names),
	}
}

func createPromoModal() platform.Modal {
	return platform.Modal{
		CustomID: customid.New(customid.CreatePromoModal).String(),
		Title:    "🎓 Nouvelle promo",
		Inputs: []platform.TextInput{
			{ID: InputName, Label: "Nom de la promo", Placeholder: "CDA-Paris-2025", Required: true, MinLength: 1, MaxLength: lifecycle.MaxNameLength},
			{ID: InputStartDate, Label: "Date de début (AAAA-MM-JJ)", Placeholder: "2025-09-01", Required: true, MinLength: 10, MaxLength: 10},
			{ID: InputEndDate, Label: "Date de fin (AAAA-MM-JJ)", Placeholder: "2026-06-30", Required: true, MinLength: 10, MaxLength: 10},
		},
	}
}

func programChooser(programs []models.Program) platform.Message {
	opts := make([]platform.SelectOption, 0, len(programs))
	for _, p := range programs {
		opts = append(opts, platform.SelectOption{Label: truncate(p.Name, 100), Value: p.ID})
	}
	return platform.Message{
		Content: "**Étape 1/2** : choisissez la formation.",
		Components: []platform.Row{platform.SelectRow(platform.Select{
			CustomID:    customid.New(customid.SelectProgram).String(),
			Placeholder: "Formation",
			Options:     limitOptions(opts),
		})},
	}
}

func siteChooser(sites []models.Site) platform.Message {
	opts := make([]platform.SelectOption, 0, len(sites))
	for _, s := range sites {
		opts = append(opts, platform.SelectOption{Label: truncate(s.Name, 100), Value: s.ID})
	}
	return platform.Message{
		Content: "**Étape 2/2** : choisissez le campus.",
		Components: []platform.Row{platform.SelectRow(platform.Select{
			CustomID:    customid.New(customid.SelectSite).String(),
			Placeholder: "Campus",
			Options:     limitOptions(opts),
		})},
	}
}

func promoChooser(promos []models.Promo) platform.Message {
	opts := make([]platform.SelectOption, 0, len(promos))
	for _, p := range promos {
		opts = append(opts, platform.SelectOption{
			Label:       truncate(p.Name, 100),
			Value:       p.ID,
			Description: fmt.Sprintf("Du %s au %s", p.StartDate.Format(displayDate), p.EndDate.Format(displayDate)),
		})
	}
	return platform.Message{
		Content: "Choisissez la promo que vous souhaitez rejoindre.",
		Components: []platform.Row{platform.SelectRow(platform.Select{
			CustomID:    customid.New(customid.SelectPromo).String(),
			Placeholder: "Promo",
			Options:     limitOptions(opts),
		})},
	}
}

func limitOptions(opts []platform.SelectOption) []platform.SelectOption {
	if len(opts) > platform.MaxSelectOptions {
		return opts[:platform.MaxSelectOptions]
	}
	return opts
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func identificationPanel() platform.Message {
	return platform.Message{
		Embeds: []platform.Embed{{
			Title:       "🪪 Identification",
			Description: "Indiquez votre prénom et votre nom pour être reconnu(e) sur le serveur.",
			Color:       platform.ColorInfo,
		}},
		Components: []platform.Row{platform.ButtonRow(
			platform.Button{CustomID: customid.New(customid.IdentifyButton).String(), Label: "M'identifier", Style: platform.ButtonPrimary},
			platform.Button{CustomID: customid.New(customid.UpdateIdentityButton).String(), Label: "Modifier mon identité", Style: platform.ButtonSecondary},
		)},
	}
}

func createPromoPanel() platform.Message {
	return platform.Message{
		Embeds: []platform.Embed{{
			Title:       "🎓 Créer une promo",
			Description: "Choisissez la formation et le campus, puis renseignez le nom et les dates.",
			Color:       platform.ColorInfo,
		}},
		Components: []platform.Row{platform.ButtonRow(
			platform.Button{CustomID: customid.New(customid.CreatePromoButton).String(), Label: "Créer une promo", Style: platform.ButtonSuccess},
		)},
	}
}

func inscriptionPanel() platform.Message {
	return platform.Message{
		Embeds: []platform.Embed{{
			Title:       "📝 Inscription à une promo",
			Description: "Demandez à rejoindre une promo. Un formateur validera votre demande.",
			Color:       platform.ColorInfo,
		}},
		Components: []platform.Row{platform.ButtonRow(
			platform.Button{CustomID: customid.New(customid.InscriptionButton).String(), Label: "Demander mon inscription", Style: platform.ButtonPrimary},
		)},
	}
}
