package datastore

import (
	"context"

	"missionlog/internal/models"

	"github.com/uptrace/bun"
)

func CreateTableMission(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*models.Mission)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.Mission)(nil)).Index("index_mission_creator_id").IfNotExists().Column("creator_id").Exec(ctx)
	if err != nil {
		return err
	}

	return nil
}

func CreateTableMissionParticipant(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*models.MissionParticipant)(nil)).IfNotExists().
		ForeignKey(`("mission_id") REFERENCES "mission" ("id") ON DELETE CASCADE`).
		Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.MissionParticipant)(nil)).Index("index_mission_participant_mission_user").IfNotExists().Unique().Column("mission_id", "user_id").Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.MissionParticipant)(nil)).Index("index_mission_participant_user_id").IfNotExists().Column("user_id").Exec(ctx)
	if err != nil {
		return err
	}

	return nil
}

type MissionStore struct {
	db bun.IDB
}

func NewMissionStore(db bun.IDB) *MissionStore {
	return &MissionStore{db}
}

func (s *MissionStore) GetMission(ctx context.Context, id int64) (*models.Mission, error) {
	var mission models.Mission
	err := s.db.NewSelect().Model(&mission).Where("id = ?", id).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &mission, nil
}

type ParticipantStore struct {
	db bun.IDB
}

func NewParticipantStore(db bun.IDB) *ParticipantStore {
	return &ParticipantStore{db}
}

// GetParticipant ignores participants who left the mission.
func (s *ParticipantStore) GetParticipant(ctx context.Context, missionID int64, userID int64) (*models.MissionParticipant, error) {
	var participant models.MissionParticipant
	err := s.db.NewSelect().Model(&participant).
		Where("mission_id = ?", missionID).
		Where("user_id = ?", userID).
		Where("status != ?", models.PARTICIPANT_STATUS_LEFT).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

func (s *ParticipantStore) ListPinnedParticipants(ctx context.Context, userID int64) ([]*models.MissionParticipant, error) {
	var participants []*models.MissionParticipant
	err := s.db.NewSelect().Model(&participants).
		Relation("Mission").
		Where("mission_participant.user_id = ?", userID).
		Where("mission_participant.status != ?", models.PARTICIPANT_STATUS_LEFT).
		Where("mission.is_pinned = ?", true).
		Order("mission_participant.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return participants, nil
}
