package service

import (
	"fmt"

	"courier/internal/directory"
	"courier/internal/metrics"
	"courier/internal/models"
)

// UserService 封装注册、列表与删除。
type UserService struct {
	dir *directory.Directory
}

func NewUserService(dir *directory.Directory) *UserService {
	return &UserService{dir: dir}
}

// Register 创建匿名用户并返回其凭据。
func (s *UserService) Register() (models.User, error) {
	rec, err := s.dir.Register()
	if err != nil {
		return models.User{}, fmt.Errorf("register: %w", err)
	}
	metrics.UsersRegistered.Inc()
	metrics.Users.Set(float64(s.dir.Len()))
	return models.User{ID: rec.ID, Token: rec.Token}, nil
}

func (s *UserService) List() []models.UserID {
	return s.dir.ListIDs()
}

// Delete 删除用户，幂等；用户的实时通道随之关闭。
func (s *UserService) Delete(id models.UserID) {
	if s.dir.Remove(id) {
		metrics.Users.Set(float64(s.dir.Len()))
	}
}
