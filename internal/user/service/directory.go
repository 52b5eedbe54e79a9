package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	networkdomain "github.com/trmhq/trm/internal/network/domain"
	"github.com/trmhq/trm/internal/user/domain"
	"gorm.io/gorm"
)

// Directory resolves member profiles for network tree responses.
type Directory struct {
	db   *gorm.DB
	repo domain.Repository
}

func NewDirectory(db *gorm.DB, repo domain.Repository) networkdomain.Directory {
	return &Directory{db: db, repo: repo}
}

func (d *Directory) ResolveProfiles(ctx context.Context, orgID snowflake.ID, ids []snowflake.ID) (map[snowflake.ID]networkdomain.Profile, error) {
	users, err := d.repo.FindByIDs(ctx, d.db, orgID, ids)
	if err != nil {
		return nil, err
	}

	profiles := make(map[snowflake.ID]networkdomain.Profile, len(users))
	for _, user := range users {
		if user == nil {
			continue
		}
		profiles[user.ID] = networkdomain.Profile{
			ID:        user.ID,
			Name:      user.Name,
			Email:     user.Email,
			AvatarURL: user.AvatarURL,
			Tier:      user.Tier,
		}
	}
	return profiles, nil
}
