// Package nppes discovers and downloads the monthly NPPES data dissemination archive.
//
// The CMS index page lists every published NPPES file. The nppes package fetches that
// page, extracts its hyperlinks, resolves them against the page URL and keeps the ones
// naming a Monthly V2 archive. Archive file names embed their publication date, and the
// newest archive is taken to be the greatest full URL under plain string ordering. That
// holds for date-stamped names only: month-name names do not sort chronologically, and
// weekly V2 archives match the same pattern. The selected archive is then downloaded
// into memory.
package nppes
