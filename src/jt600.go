package trackgw

/*------------------------------------------------------------------
 *
 * Purpose:	Compact BCD location block used by the 0x5501/0x5502
 *		reports.
 *
 * Description:	An older tracker lineage packs its fix into 18 bytes:
 *		date and time in BCD (day first), latitude as 8 BCD
 *		digits and longitude as 9, a flags byte carrying
 *		validity and the hemispheres, BCD speed and a course
 *		stored in half degrees. Coordinates are degrees and
 *		decimal minutes, not decimal degrees, and are reported
 *		in the published datum already, so they bypass the
 *		transform. Timestamps are UTC.
 *
 *---------------------------------------------------------------*/

// convertCoordinate turns a packed ddmmmmmm (or dddmmmmmm) value into
// decimal degrees. The low six digits are minutes scaled by 10000.
func convertCoordinate(raw int64) float64 {
	degrees := float64(raw / 1000000)
	minutes := float64(raw%1000000) * 0.0001
	return degrees + minutes/60
}

func decodeBinaryLocation(r *frameReader, position *Position) error {
	position.SetTime(newDateBuilder(nil).
		SetDay(int(readBcd(r, 2))).
		SetMonth(int(readBcd(r, 2))).
		SetYear(int(readBcd(r, 2))).
		SetTime(int(readBcd(r, 2)), int(readBcd(r, 2)), int(readBcd(r, 2))).
		Date())

	latitude := convertCoordinate(readBcd(r, 8))
	longitude := convertCoordinate(readBcd(r, 9))

	flags := r.ReadU8()
	position.Valid = flags&0x01 != 0
	if flags&0x02 == 0 {
		latitude = -latitude
	}
	if flags&0x04 == 0 {
		longitude = -longitude
	}
	if err := position.SetLatitude(latitude); err != nil {
		return err
	}
	if err := position.SetLongitude(longitude); err != nil {
		return err
	}

	position.Speed = float64(readBcd(r, 2))
	position.Course = float64(r.ReadU8()) * 2
	return nil
}
