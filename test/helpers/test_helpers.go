package helpers

import (
	"context"
	"reflect"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/nearwave/geocampaign/internal/repository"
	"github.com/nearwave/geocampaign/pkg/pg"
	"github.com/nearwave/geocampaign/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SetupTestDB builds an in-memory sqlite database behind the read/write
// wrapper so repositories can be tested without Postgres.
func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&repository.CustomerEntity{},
		&repository.TargetingLocationEntity{},
		&repository.CampaignEntity{},
		&repository.DeliveryEntity{},
	)
	require.NoError(t, err)

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	return pgDB
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	// Unique connection name per test, the adapter registry is global.
	adapter, err := redis.NewRedisAdapter(t.Name()+"-"+mr.Addr(), "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func CreateTestCustomer(t *testing.T, db *pg.DB, name, phone string, lat, lng float64) *repository.CustomerEntity {
	ctx := context.Background()
	customer := &repository.CustomerEntity{
		Name:  name,
		Phone: phone,
		Lat:   lat,
		Lng:   lng,
	}
	require.NoError(t, db.Write(ctx).Create(customer).Error)
	return customer
}

func CreateTestLocation(t *testing.T, db *pg.DB, name string, lat, lng float64, radiusM int) *repository.TargetingLocationEntity {
	ctx := context.Background()
	location := &repository.TargetingLocationEntity{
		Name:      name,
		CenterLat: lat,
		CenterLng: lng,
		RadiusM:   radiusM,
	}
	require.NoError(t, db.Write(ctx).Create(location).Error)
	return location
}
