// Package device provides the persistent device registry for lanpulse.
//
// A Device is one piece of hardware observed on the network via DHCP lease
// assignments, keyed by canonical MAC address. The registry stores the
// user-facing settings (name, notify flag), the sighting timestamps, and
// the manufacturer-lookup fields driven by the manufacturer package.
//
// # Key Types
//
//   - Device: one tracked network device
//   - LookupStatus: persisted manufacturer-lookup state machine value
//   - Repository: persistence interface, implemented by SQLiteRepository
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db.DB)
//
//	dev, created, err := repo.RecordSeen(ctx, "aa:bb:cc:dd:ee:ff", "laptop")
//	if err != nil {
//	    return err
//	}
//	if created {
//	    // first time this MAC was seen
//	}
//
// # Thread Safety
//
// SQLiteRepository is safe for concurrent use; single-record mutations are
// atomic at the database level. Cross-record coordination (in-flight lookup
// de-duplication) lives in the manufacturer package, not here.
package device
