package domain

import (
	"time"
)

type Role string

const (
	RoleEmployee Role = "普通员工"
	RoleManager  Role = "排班经理"
	RoleAdmin    Role = "系统管理员"
)

type Employee struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	PositionID   *int64    `json:"positionID"` // 默认岗位，为 nil 时表示没有默认岗位
	SiteID       *int64    `json:"siteID"`     // 为 nil 时表示该员工可以在任意站点值班
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	Version      int32     `json:"-"`
}

// WorksAt 判断员工是否属于某个站点（没有固定站点的员工属于所有站点）
func (e *Employee) WorksAt(siteID int64) bool {
	return e.SiteID == nil || *e.SiteID == siteID
}
