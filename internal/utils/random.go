package utils

import (
	"fmt"
	"math/rand"

	"github.com/mozillazg/go-pinyin"
	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "勇", "霞", "飞", "玲",
	"超", "华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌",
	"庆", "建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

func GenerateRandomChineseName() string {
	surname := commonSurnames[rand.Intn(len(commonSurnames))]
	nameLength := rand.Intn(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[rand.Intn(len(commonNameCharacters))]
	}
	return surname + name
}

var digits = "0123456789"

func GenerateUsernameFromChineseName(chineseName string) string {
	pinyinArray := pinyin.LazyConvert(chineseName, nil)
	username := ""

	for _, pinyin := range pinyinArray {
		length := rand.Intn(len(pinyin)) + 1
		username += pinyin[:length]
	}

	digitsLength := rand.Intn(3) + 1
	for i := 0; i < digitsLength; i++ {
		username += string(digits[rand.Intn(len(digits))])
	}

	return username
}

var seedRoles = []domain.Role{
	domain.RoleEmployee,
	domain.RoleManager,
	domain.RoleAdmin,
}

func GenerateRandomRole() domain.Role {
	return seedRoles[rand.Intn(len(seedRoles))]
}

// GenerateRandomEmployee 生成一个随机员工，岗位和站点由调用方指定
func GenerateRandomEmployee(password string, emailDomainName string, positionID *int64, siteID *int64) (*domain.Employee, error) {
	fullName := GenerateRandomChineseName()
	username := GenerateUsernameFromChineseName(fullName)
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	employee := &domain.Employee{
		Username:     username,
		PasswordHash: string(passwordHash),
		FullName:     fullName,
		Email:        username + "@" + emailDomainName,
		Role:         GenerateRandomRole(),
		PositionID:   positionID,
		SiteID:       siteID,
	}

	return employee, nil
}

func GenerateRandomOTP() string {
	return fmt.Sprintf("%06d", rand.Intn(1000000))
}

var letters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*")

func GenerateRandomPassword(length int) string {
	random_password := make([]rune, length)
	for i := range random_password {
		random_password[i] = letters[rand.Intn(len(letters))]
	}
	return string(random_password)
}

// GenerateRandomWeeklyStatus 以大致固定的比例产生三种当周约束状态，
// 用于生成测试数据
func GenerateRandomWeeklyStatus() domain.ConstraintStatus {
	switch rand.Intn(10) {
	case 0, 1:
		return domain.ConstraintCannotWork
	case 2, 3, 4:
		return domain.ConstraintPreferWork
	default:
		return domain.ConstraintNeutral
	}
}
