package service

import (
	"strconv"
	"time"

	"MediCare/config"
	pkgerrors "MediCare/pkg/errors"
	"MediCare/utils"
)

// api 中的 user_id 都是 public_id 的十进制字符串

func parseUserID(userID string) (int64, error) {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil || id <= 0 {
		return 0, pkgerrors.InvalidUserID
	}
	return id, nil
}

func formatUserID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// userLocation 用户时区，非法时退回默认时区
func userLocation(tz string) *time.Location {
	return utils.LoadLocation(tz, config.Cfg.DefaultTimezone)
}
