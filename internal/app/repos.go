package app

import (
	"gorm.io/gorm"

	"github.com/crestdesk/crestdesk-backend/internal/pkg/logger"
	"github.com/crestdesk/crestdesk-backend/internal/repos"
)

type Repos struct {
	Organization repos.OrganizationRepo
	UserProfile  repos.UserProfileRepo
	Membership   repos.MembershipRepo
	Conversation repos.ConversationRepo
	Connection   repos.ConnectionRepo
	IngestionRun repos.IngestionRunRepo
	Document     repos.DocumentRepo
	Delegation   repos.DelegationRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Organization: repos.NewOrganizationRepo(db, log),
		UserProfile:  repos.NewUserProfileRepo(db, log),
		Membership:   repos.NewMembershipRepo(db, log),
		Conversation: repos.NewConversationRepo(db, log),
		Connection:   repos.NewConnectionRepo(db, log),
		IngestionRun: repos.NewIngestionRunRepo(db, log),
		Document:     repos.NewDocumentRepo(db, log),
		Delegation:   repos.NewDelegationRepo(db, log),
	}
}
