package usecase

import (
	"fmt"
	"strings"

	"ergovoice/internal/domain"
)

const promptPriority = "Quelle priorité ? Dites Haute, Moyenne ou Basse"

func promptCategory(priority domain.Priority) string {
	return fmt.Sprintf("La priorité est %s. Quelle est la catégorie ? Dites Perso, Travail ou Études",
		strings.ToLower(priority.Label()))
}

func promptConfirmation(cmd domain.TaskCommand) string {
	return fmt.Sprintf("La catégorie est %s. Tâche ajoutée : %s, catégorie %s, priorité %s",
		strings.ToLower(cmd.Category.Label()), cmd.Title, cmd.Category.Label(), cmd.Priority.Label())
}
