package domain

import "time"

type WorkSite struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	Version   int32     `json:"-"`
}

type Position struct {
	ID        int64     `json:"id"`
	SiteID    int64     `json:"siteID"`
	Name      string    `json:"name"`
	NumOfEmp  int32     `json:"numOfEmp"` // 每个班次需要的员工数量
	CreatedAt time.Time `json:"createdAt"`
	Version   int32     `json:"-"`
}
