package setup

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"
)

func TestMySQLDSN(t *testing.T) {
	_, err := mysqlDSN(DBOptions{})
	assert.Error(t, err, "缺少 DB_USER 时应报错")

	dsn, err := mysqlDSN(DBOptions{User: "app", Password: "pw", Host: "db", Port: "3307", Name: "rooms"})
	require.NoError(t, err)
	assert.Equal(t, "app:pw@tcp(db:3307)/rooms?charset=utf8mb4&parseTime=True&loc=UTC&clientFoundRows=true", dsn)

	dsn, err = mysqlDSN(DBOptions{User: "app"})
	require.NoError(t, err)
	assert.Contains(t, dsn, "@tcp(127.0.0.1:3306)/rooms_db?")
}

func TestInitDB_SQLiteAndMigrate(t *testing.T) {
	db, err := InitDB(DBOptions{Driver: "sqlite", SQLitePath: ":memory:", LogLevel: gormlogger.Silent})
	require.NoError(t, err)
	require.NoError(t, MigrateDB(db))
	for _, m := range Models() {
		assert.True(t, db.Migrator().HasTable(m), "%T 应已建表", m)
	}
	assert.Error(t, MigrateDB(nil))
}

func TestInitDB_UnknownDriver(t *testing.T) {
	_, err := InitDB(DBOptions{Driver: "oracle"})
	assert.Error(t, err)
}

func TestInitRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := InitRedis(mr.Addr(), "", 0)
	require.NoError(t, err)
	defer client.Close()

	_, err = InitRedis("", "", 0)
	assert.Error(t, err)
}
