// Package app assembles the ledger and the case trackers over one storage
// backend. The API server, the workers and the tests share it.
package app

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/student-eservices/internal/appointment"
	"github.com/hackgods/student-eservices/internal/db"
	"github.com/hackgods/student-eservices/internal/identity"
	"github.com/hackgods/student-eservices/internal/medical"
	"github.com/hackgods/student-eservices/internal/notify"
	redisclient "github.com/hackgods/student-eservices/internal/redis"
	"github.com/hackgods/student-eservices/internal/refgen"
	"github.com/hackgods/student-eservices/internal/slot"
	"github.com/hackgods/student-eservices/internal/storage/memory"
	"github.com/hackgods/student-eservices/internal/visa"
)

// Storage is one consistent set of repositories sharing a transactor.
type Storage struct {
	Tx           db.Transactor
	Slots        slot.Repository
	Appointments appointment.Repository
	Medical      medical.Repository
	Visas        visa.Repository
	Sequencer    refgen.Sequencer
	Students     identity.Registry
}

func PostgresStorage(pool *pgxpool.Pool) Storage {
	return Storage{
		Tx:           db.NewPgTransactor(pool),
		Slots:        slot.NewPgRepository(pool),
		Appointments: appointment.NewPgRepository(pool),
		Medical:      medical.NewPgRepository(pool),
		Visas:        visa.NewPgRepository(pool),
		Sequencer:    refgen.NewPgSequencer(pool),
		Students:     identity.NewPgDirectory(pool),
	}
}

func MemoryStorage(store *memory.Store) Storage {
	return Storage{
		Tx:           store,
		Slots:        store.Slots(),
		Appointments: store.Appointments(),
		Medical:      store.Medical(),
		Visas:        store.Visas(),
		Sequencer:    store.Sequencer(),
		Students:     store.Directory(),
	}
}

type Options struct {
	Location    *time.Location
	Locker      redisclient.Locker
	SweepLocker redisclient.Locker // reminder sweep lock; defaults to Locker
	Notifier    notify.Notifier
	Log         *zap.Logger
	PhoneRegion string
	Now         func() time.Time // defaults to time.Now
}

type Services struct {
	Slots        *slot.Pool
	Appointments *appointment.Service
	Medical      *medical.Tracker
	Visa         *visa.Tracker
	Dispatcher   *notify.Dispatcher
}

func Build(st Storage, opts Options) *Services {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	log := opts.Log
	dispatcher := notify.NewDispatcher(opts.Notifier, st.Students, log.Named("notify"))

	pool := slot.NewPool(st.Slots, st.Tx, opts.Location, log.Named("slots"), slot.WithClock(now))

	ledger := appointment.NewService(appointment.Deps{
		Repo:        st.Appointments,
		Slots:       pool,
		Tx:          st.Tx,
		Locker:      opts.Locker,
		SweepLocker: opts.SweepLocker,
		Sequencer:   st.Sequencer,
		Directory:   st.Students,
		Dispatcher:  dispatcher,
		Log:         log.Named("appointments"),
		PhoneRegion: opts.PhoneRegion,
		Now:         now,
	})

	med := medical.NewTracker(medical.Deps{
		Repo:        st.Medical,
		Tx:          st.Tx,
		Sequencer:   st.Sequencer,
		Directory:   st.Students,
		Dispatcher:  dispatcher,
		Log:         log.Named("medical"),
		Location:    opts.Location,
		PhoneRegion: opts.PhoneRegion,
		Now:         now,
	})

	vt := visa.NewTracker(visa.Deps{
		Repo:       st.Visas,
		Medical:    med,
		Tx:         st.Tx,
		Sequencer:  st.Sequencer,
		Directory:  st.Students,
		Dispatcher: dispatcher,
		Log:        log.Named("visa"),
		Location:   opts.Location,
		Now:        now,
	})

	return &Services{
		Slots:        pool,
		Appointments: ledger,
		Medical:      med,
		Visa:         vt,
		Dispatcher:   dispatcher,
	}
}
