package model

// Profile represents the public part of a row in the `profiles` table.  The
// engine only reads it to decorate bid history; identity itself comes from
// the verified JWT subject.
//
// Fields:
//  ID          – user id (JWT sub).
//  DisplayName – name shown next to bids.
//  IsDealer    – whether the user is a registered dealer.
//  DealerName  – trading name, empty for private bidders.
type Profile struct {
	ID          string
	DisplayName string
	IsDealer    bool
	DealerName  string
}
