package storage

import (
	"MediCare/storage/database"
	"MediCare/storage/mq"
	"MediCare/storage/objectstore"
	"MediCare/storage/redis"
)

// Init 初始化 server 所需的全部存储
func Init() error {
	if err := InitCore(); err != nil {
		return err
	}
	return objectstore.Init()
}

// InitCore 初始化数据库、Redis 与 RabbitMQ，worker 与 scheduler 只需要这部分
func InitCore() error {
	if err := database.Init(); err != nil {
		return err
	}
	if err := redis.Init(); err != nil {
		return err
	}
	return mq.Init()
}
