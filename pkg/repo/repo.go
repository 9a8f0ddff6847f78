package repo

import (
	"gorm.io/gorm"
)

type IRepo interface {
	OrderEvent() IOrderEvent
}

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) IRepo {
	return &Repo{db: db}
}

func (r *Repo) OrderEvent() IOrderEvent {
	return NewOrderEventSQLRepo(r.db)
}
