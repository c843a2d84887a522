// Package disc identifies Wii and GameCube disc images.
//
// It sniffs the container (raw ISO/GCM, WBFS, CISO), reads the boot block
// header, and resolves split parts written for FAT32 drives. It never decodes
// partition data.
package disc
